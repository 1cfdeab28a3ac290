package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
)

type memEntry struct {
	ca      *analysis.ChangeAnalysis
	expires time.Time
}

const (
	defaultMaxItems = 10000
	sweepInterval   = time.Minute
)

// MemoryCache is the in-process fallback used when no redis URL is configured.
// Expired entries are dropped on read and by a sweep that Set runs at most once
// per sweepInterval. Beyond maxItems the entry closest to expiry is evicted.
type MemoryCache struct {
	mu        sync.RWMutex
	items     map[int64]memEntry
	ttl       time.Duration
	maxItems  int
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: map[int64]memEntry{}, ttl: ttl, maxItems: defaultMaxItems, now: time.Now}
}

var _ analysis.Cache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(_ context.Context, changeID int64) (*analysis.ChangeAnalysis, bool, error) {
	c.mu.RLock()
	e, ok := c.items[changeID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.items, changeID)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.ca, true, nil
}

func (c *MemoryCache) Set(_ context.Context, ca *analysis.ChangeAnalysis) error {
	if ca == nil || ca.Record == nil {
		return errors.New("cache: analysis without record")
	}
	now := c.now()
	e := memEntry{ca: ca}
	if c.ttl > 0 {
		e.expires = now.Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweep(now)
	}
	if _, exists := c.items[ca.Record.ID]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOne()
	}
	c.items[ca.Record.ID] = e
	return nil
}

// sweep drops expired entries. Callers hold c.mu.
func (c *MemoryCache) sweep(now time.Time) {
	for id, e := range c.items {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.items, id)
		}
	}
	c.lastSweep = now
}

// evictOne removes the entry that expires first; entries without expiry go
// before any that have one. Callers hold c.mu.
func (c *MemoryCache) evictOne() {
	var (
		victim int64
		oldest time.Time
		found  bool
	)
	for id, e := range c.items {
		if !found || e.expires.Before(oldest) {
			victim, oldest, found = id, e.expires, true
		}
	}
	if found {
		delete(c.items, victim)
	}
}

// Len reports the number of stored entries, expired ones included until swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
