// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package mutationlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tomtom215/fieldsync/internal/localstore"
	"github.com/tomtom215/fieldsync/internal/models"
)

func setupTestLog(t *testing.T) (*BadgerLog, *localstore.Store) {
	t.Helper()
	store, err := localstore.OpenForTesting(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	l, err := Open(store)
	if err != nil {
		store.Close()
		t.Fatalf("open log: %v", err)
	}
	t.Cleanup(func() {
		l.Close()
		store.Close()
	})
	return l, store
}

func projectPayload(n int) *models.CreateProjectPayload {
	return &models.CreateProjectPayload{
		TempID: fmt.Sprintf("tmp-%d", n),
		Project: models.Project{
			ProjectNumber: fmt.Sprintf("P-%03d", n),
			Name:          fmt.Sprintf("Project %d", n),
		},
	}
}

func TestEnqueueThenListReadsOwnWrite(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	id, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(1))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue returned empty id")
	}

	entries, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("List() = %+v, want the new entry", entries)
	}
	if entries[0].Type != models.MutationCreateProject {
		t.Errorf("type = %s", entries[0].Type)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestListIsFIFO(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 150; i++ {
		id, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(i))
		if err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	entries, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != len(ids) {
		t.Fatalf("got %d entries, want %d", len(entries), len(ids))
	}
	for i, e := range entries {
		if e.ID != ids[i] {
			t.Fatalf("entry %d = %s, want %s", i, e.ID, ids[i])
		}
	}
}

func TestOrderSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := localstore.OpenForTesting(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	l, err := Open(store)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	first, _ := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(1))
	second, _ := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(2))
	if err := l.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	store2, err := localstore.OpenForTesting(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	l2, err := Open(store2)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	defer func() {
		l2.Close()
		store2.Close()
	}()

	third, err := l2.Enqueue(ctx, models.MutationCreateProject, projectPayload(3))
	if err != nil {
		t.Fatalf("Enqueue after restart: %v", err)
	}

	entries, err := l2.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{first, second, third}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i].ID != want[i] {
			t.Errorf("entry %d = %s, want %s", i, entries[i].ID, want[i])
		}
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	keep, _ := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(1))
	drop, _ := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(2))

	if err := l.Remove(ctx, drop); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	after1, _ := l.List(ctx)

	if err := l.Remove(ctx, drop); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if err := l.Remove(ctx, "never-existed"); err != nil {
		t.Fatalf("Remove unknown id: %v", err)
	}
	if err := l.Remove(ctx, ""); err != nil {
		t.Fatalf("Remove empty id: %v", err)
	}
	after2, _ := l.List(ctx)

	if len(after1) != 1 || len(after2) != 1 {
		t.Fatalf("lengths %d/%d, want 1/1", len(after1), len(after2))
	}
	if after2[0].ID != keep {
		t.Errorf("remaining entry = %s, want %s", after2[0].ID, keep)
	}
	if _, err := l.Get(ctx, drop); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get removed = %v, want ErrEntryNotFound", err)
	}
}

func TestClear(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(i)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := l.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := l.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 0 {
		t.Errorf("Len() = %d after Clear", n)
	}

	id, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(9))
	if err != nil {
		t.Fatalf("Enqueue after Clear: %v", err)
	}
	entries, _ := l.List(ctx)
	if len(entries) != 1 || entries[0].ID != id {
		t.Errorf("List after Clear+Enqueue = %+v", entries)
	}
}

func TestGet(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	id, _ := l.Enqueue(ctx, models.MutationUpdateChamber, &models.UpdateChamberPayload{
		ID:    "c-1",
		Patch: map[string]interface{}{"notes": "cracked benching"},
	})

	m, err := l.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p, err := m.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	upd, ok := p.(*models.UpdateChamberPayload)
	if !ok {
		t.Fatalf("payload type %T", p)
	}
	if upd.ID != "c-1" || upd.Patch["notes"] != "cracked benching" {
		t.Errorf("payload = %+v", upd)
	}
}

func TestEnqueueRejectsMismatchedPayload(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	if _, err := l.Enqueue(ctx, models.MutationCreateChamber, projectPayload(1)); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := l.Len(ctx); n != 0 {
		t.Errorf("Len() = %d, rejected entry was written", n)
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(w*100+i)); err != nil {
					t.Errorf("Enqueue: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 160 {
		t.Errorf("Len() = %d, want 160", n)
	}
}

// A List taken while writers are appending must be a prefix of every later
// List: an entry never appears ahead of one that is already visible.
func TestListOnlyGrowsAtTheTail(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(w*100+i)); err != nil {
					t.Errorf("Enqueue: %v", err)
				}
			}
		}(w)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var prev []string
	check := func() error {
		entries, err := l.List(ctx)
		if err != nil {
			return err
		}
		if len(entries) < len(prev) {
			return fmt.Errorf("List shrank from %d to %d", len(prev), len(entries))
		}
		for i, id := range prev {
			if entries[i].ID != id {
				return fmt.Errorf("position %d changed from %s to %s", i, id, entries[i].ID)
			}
		}
		prev = prev[:0]
		for _, e := range entries {
			prev = append(prev, e.ID)
		}
		return nil
	}
	for {
		select {
		case <-done:
			if err := check(); err != nil {
				t.Fatal(err)
			}
			if len(prev) != 200 {
				t.Errorf("List has %d entries, want 200", len(prev))
			}
			return
		default:
			if err := check(); err != nil {
				<-done
				t.Fatal(err)
			}
		}
	}
}

func TestClosedLog(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(1)); !errors.Is(err, ErrLogClosed) {
		t.Errorf("Enqueue after Close = %v", err)
	}
	if _, err := l.List(ctx); !errors.Is(err, ErrLogClosed) {
		t.Errorf("List after Close = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestStats(t *testing.T) {
	l, _ := setupTestLog(t)
	ctx := context.Background()

	a, _ := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(1))
	l.Enqueue(ctx, models.MutationCreateProject, projectPayload(2))
	l.Remove(ctx, a)
	l.Remove(ctx, a)

	s := l.Stats(ctx)
	if s.Pending != 1 || s.TotalEnqueued != 2 || s.TotalRemoved != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestDisabledLog(t *testing.T) {
	var l Log = NewDisabled(errors.New("storage quota exceeded"))
	ctx := context.Background()

	id, err := l.Enqueue(ctx, models.MutationCreateProject, projectPayload(1))
	if err != nil || id != "" {
		t.Errorf("Enqueue = %q, %v; want empty id and nil error", id, err)
	}
	entries, err := l.List(ctx)
	if err != nil || len(entries) != 0 {
		t.Errorf("List = %v, %v", entries, err)
	}
	if n, _ := l.Len(ctx); n != 0 {
		t.Errorf("Len = %d", n)
	}
	if err := l.Remove(ctx, "x"); err != nil {
		t.Errorf("Remove = %v", err)
	}
	if err := l.Clear(ctx); err != nil {
		t.Errorf("Clear = %v", err)
	}
}

func TestEntryKeyOrdering(t *testing.T) {
	a, b := entryKey(9), entryKey(10)
	if string(a) >= string(b) {
		t.Errorf("key %s should sort before %s", a, b)
	}
	seq, err := parseSeq(b)
	if err != nil || seq != 10 {
		t.Errorf("parseSeq(%s) = %d, %v", b, seq, err)
	}
}
