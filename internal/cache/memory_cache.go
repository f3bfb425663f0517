package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/epeers/allocator/internal/models"
)

// MemoryCache is an in-memory TTL cache for asset search results.
// Quotes are deliberately not cached: every refresh needs a live price.
type MemoryCache struct {
	searches map[string]searchEntry
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
}

type searchEntry struct {
	results   []models.SearchResult
	fetchedAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		searches: make(map[string]searchEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// searchCacheKey normalizes a query so "  AAPL" and "aapl" share an entry
func searchCacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// GetSearch retrieves cached search results if fresh
func (c *MemoryCache) GetSearch(query string) ([]models.SearchResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.searches[searchCacheKey(query)]
	if !exists {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	return entry.results, true
}

// SetSearch caches search results. Expired entries are dropped on the way in
// so the map stays bounded by the query rate within one TTL.
func (c *MemoryCache) SetSearch(query string, results []models.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune()
	c.searches[searchCacheKey(query)] = searchEntry{
		results:   results,
		fetchedAt: c.now(),
	}
}

// Prune drops expired entries and returns how many were removed
func (c *MemoryCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.prune()
}

func (c *MemoryCache) prune() int {
	removed := 0
	now := c.now()
	for k, entry := range c.searches {
		if now.Sub(entry.fetchedAt) > c.ttl {
			delete(c.searches, k)
			removed++
		}
	}
	return removed
}
