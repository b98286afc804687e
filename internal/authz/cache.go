// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package authz

import (
	"sync"

	"github.com/tomtom215/fieldsync/internal/auth"
)

// decisionCache memoizes decisions. The key space is roles x objects x
// actions, so entries never need to expire; clear runs on policy reload.
type decisionCache struct {
	mu    sync.RWMutex
	items map[string]bool
}

func newDecisionCache() *decisionCache {
	return &decisionCache{items: make(map[string]bool)}
}

func cacheKey(role auth.Role, object, action string) string {
	return string(role) + ":" + object + ":" + action
}

func (c *decisionCache) get(role auth.Role, object, action string) (allowed, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	allowed, ok = c.items[cacheKey(role, object, action)]
	return allowed, ok
}

func (c *decisionCache) set(role auth.Role, object, action string, allowed bool) {
	c.mu.Lock()
	c.items[cacheKey(role, object, action)] = allowed
	c.mu.Unlock()
}

func (c *decisionCache) clear() {
	c.mu.Lock()
	c.items = make(map[string]bool)
	c.mu.Unlock()
}
