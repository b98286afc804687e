// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUCacheGetAdd(t *testing.T) {
	c := NewLRUCache(3, time.Minute)
	c.Add("tmp-A", "p-1")
	c.Add("tmp-B", "p-2")

	if v, ok := c.Get("tmp-A"); !ok || v != "p-1" {
		t.Errorf("Get(tmp-A) = %q, %v", v, ok)
	}
	if _, ok := c.Get("tmp-Z"); ok {
		t.Error("Get(tmp-Z) found a value")
	}

	c.Add("tmp-A", "p-9")
	if v, _ := c.Get("tmp-A"); v != "p-9" {
		t.Errorf("refreshed value = %q", v)
	}

	hits, misses, size := c.Stats()
	if hits != 2 || misses != 1 || size != 2 {
		t.Errorf("Stats = %d/%d/%d", hits, misses, size)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3, time.Minute)
	c.Add("a", "1")
	c.Add("b", "2")
	c.Add("c", "3")
	c.Get("a")
	c.Add("d", "4")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s missing", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewLRUCache(10, time.Hour)
	c.now = func() time.Time { return now }

	c.Add("tmp-A", "p-1")
	now = now.Add(59 * time.Minute)
	if _, ok := c.Get("tmp-A"); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("tmp-A"); ok {
		t.Error("entry outlived its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not dropped, Len = %d", c.Len())
	}
}

func TestLRUCacheRemove(t *testing.T) {
	c := NewLRUCache(0, 0)
	c.Add("a", "1")
	if !c.Remove("a") || c.Remove("a") {
		t.Error("Remove should report presence exactly once")
	}
	if c.capacity != 1024 || c.ttl != 24*time.Hour {
		t.Errorf("defaults = %d, %v", c.capacity, c.ttl)
	}
}

func TestLRUCacheConcurrent(t *testing.T) {
	c := NewLRUCache(64, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k-%d", (g*200+i)%100)
				c.Add(k, k)
				c.Get(k)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 64 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}
