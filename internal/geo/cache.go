package geo

import (
	"sync"

	"flowscope/internal/domain"
)

// Cache stores resolved base coordinates keyed by location code. Entries are
// never evicted during a session. Implementations must be safe for
// concurrent use; each dashboard instance owns its own cache so tests and
// multiple engines do not cross-contaminate.
type Cache interface {
	Get(code string) (domain.Location, bool)
	Put(code string, loc domain.Location)
	Len() int
}

// MemoryCache is the default in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]domain.Location
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]domain.Location)}
}

// Get returns the cached base location for a code.
func (c *MemoryCache) Get(code string) (domain.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[code]
	return loc, ok
}

// Put stores the unjittered base location for a code.
func (c *MemoryCache) Put(code string, loc domain.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[code] = loc
}

// Len returns the number of cached codes.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
