package scanner

import (
	"sync"
	"time"

	"github.com/starford/aiatlas/internal/models"
)

// Snapshot is one complete scan result.
type Snapshot struct {
	Notes  []models.Note
	Report *Report
	At     time.Time
}

// Cache holds the latest snapshot for a fixed time-to-live. A ttl <= 0
// disables caching: every lookup misses.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.RWMutex
	snap *Snapshot
	gen  uint64
}

// NewCache creates a cache. now defaults to time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now}
}

// Fresh returns the cached snapshot if it is younger than the ttl.
func (c *Cache) Fresh() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil || c.ttl <= 0 {
		return nil, false
	}
	if c.now().Sub(c.snap.At) >= c.ttl {
		return nil, false
	}
	return c.snap, true
}

// Generation returns a token that changes on every Invalidate.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Store replaces the snapshot unless the cache was invalidated after gen was
// taken. It reports whether the snapshot was stored.
func (c *Cache) Store(gen uint64, s *Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.snap = s
	return true
}

// Invalidate drops the snapshot so the next lookup rescans.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.gen++
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time {
	return c.now()
}
