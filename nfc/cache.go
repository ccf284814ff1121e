package nfc

import (
	"slices"
	"sync"
)

// DefaultResultCacheSize is how many tag UIDs a ResultCache remembers.
const DefaultResultCacheSize = 256

// ResultCache keeps the most recent OperationResult overall and per tag UID.
// Per-UID entries are bounded; storing a new UID past the limit evicts the
// UID stored least recently.
type ResultCache struct {
	byUID map[string]OperationResult
	order []string // UIDs, least recently stored first
	limit int
	last  *OperationResult
	mu    sync.RWMutex
}

// NewResultCache creates an empty ResultCache.
func NewResultCache() *ResultCache {
	return &ResultCache{
		byUID: make(map[string]OperationResult),
		limit: DefaultResultCacheSize,
	}
}

// Store records r as the latest result.
func (c *ResultCache) Store(r OperationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = &r
	if r.UID == "" {
		return
	}
	if _, ok := c.byUID[r.UID]; ok {
		if i := slices.Index(c.order, r.UID); i >= 0 {
			c.order = slices.Delete(c.order, i, i+1)
		}
	}
	c.byUID[r.UID] = r
	c.order = append(c.order, r.UID)

	for len(c.order) > c.limit {
		delete(c.byUID, c.order[0])
		c.order = c.order[1:]
	}
}

// Last returns the most recent result, if any.
func (c *ResultCache) Last() (OperationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return OperationResult{}, false
	}
	return *c.last, true
}

// ForUID returns the most recent result for a tag UID.
func (c *ResultCache) ForUID(uid string) (OperationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byUID[uid]
	return r, ok
}
