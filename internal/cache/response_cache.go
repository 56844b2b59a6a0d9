// Package cache holds validated enrichment results in memory.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// ══════════════════════════════════════════════════════════════════════════════
// THE RESPONSE CACHE - In-Memory Enrichment Caching
// ══════════════════════════════════════════════════════════════════════════════
//
// Key:      product fingerprint
// Value:    validated EnrichmentResult
// TTL:      24 hours, checked lazily on lookup
// Capacity: 100 entries, oldest insertion evicted first (FIFO, reads do not promote)
//
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultTTL is how long a result stays valid.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxEntries is the capacity before FIFO eviction starts.
	DefaultMaxEntries = 100
)

// entry is one cached result plus the bookkeeping needed for TTL and FIFO order.
type entry struct {
	key      string
	result   domain.EnrichmentResult
	storedAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
	Size      int   `json:"size"`
}

// ResponseCache is a bounded, thread-safe TTL cache keyed by product fingerprint.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = oldest insertion
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger

	hits      int64
	misses    int64
	evictions int64
	expired   int64
}

// Option is a functional option for configuring ResponseCache.
type Option func(*ResponseCache)

// WithTTL sets a custom TTL for cache entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxEntries sets the capacity.
func WithMaxEntries(n int) Option {
	return func(c *ResponseCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResponseCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty ResponseCache.
func New(opts ...Option) *ResponseCache {
	c := &ResponseCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the cached result for key if it is younger than the TTL.
// A stale entry is removed and reported as a miss.
func (c *ResponseCache) Get(key string) (domain.EnrichmentResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return domain.EnrichmentResult{}, false
	}

	e := elem.Value.(*entry)
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.removeElement(elem)
		c.expired++
		c.misses++
		c.logger.Debug("cache entry expired", slog.String("key", shortKey(key)))
		return domain.EnrichmentResult{}, false
	}

	c.hits++
	return e.result, true
}

// Set stores result under key. An existing key keeps its eviction position but
// gets the new value and a fresh timestamp. A new key at capacity evicts the
// oldest insertion first.
func (c *ResponseCache) Set(key string, result domain.EnrichmentResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry)
		e.result = result
		e.storedAt = now
		return
	}

	for c.order.Len() >= c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.logger.Debug("cache full, evicting oldest entry",
			slog.String("key", shortKey(oldest.Value.(*entry).key)),
			slog.Int("max_entries", c.maxEntries),
		)
		c.removeElement(oldest)
		c.evictions++
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, result: result, storedAt: now})
}

// Len returns the number of stored entries, stale ones included.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns cache counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		Size:      c.order.Len(),
	}
}

// Clear drops every entry. Counters are kept.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// removeElement must be called with mu held.
func (c *ResponseCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*entry).key)
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12] + "..."
	}
	return key
}
