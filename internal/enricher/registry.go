package enricher

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hpn/hpn-co2-enricher/internal/cache"
	"github.com/hpn/hpn-co2-enricher/internal/domain"
	"github.com/hpn/hpn-co2-enricher/internal/security"
)

// DefaultMaxEnrichers bounds how many per-key enrichers are kept alive.
const DefaultMaxEnrichers = 256

// Factory builds the Enricher used for one API key.
type Factory func(apiKey string) *Enricher

// Registry keeps one Enricher per API key, so each key has its own cache and
// its own call spacing. Keys arrive from callers, so the set is bounded: past
// maxEnrichers the least recently used enricher is dropped along with its cache.
type Registry struct {
	mu           sync.Mutex
	factory      Factory
	maxEnrichers int
	enrichers    map[string]*list.Element
	order        *list.List // front = most recently used
	evictions    int64
	logger       *slog.Logger
}

type registryEntry struct {
	key      string
	enricher *Enricher
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxEnrichers caps the number of live enrichers. Values below 1 are ignored.
func WithMaxEnrichers(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxEnrichers = n
		}
	}
}

// WithRegistryLogger sets the logger used for eviction messages.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:      factory,
		maxEnrichers: DefaultMaxEnrichers,
		enrichers:    make(map[string]*list.Element),
		order:        list.New(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the Enricher for apiKey, creating it on first use.
func (r *Registry) Get(apiKey string) (*Enricher, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.enrichers[apiKey]; ok {
		r.order.MoveToFront(elem)
		return elem.Value.(*registryEntry).enricher, nil
	}

	for r.order.Len() >= r.maxEnrichers {
		oldest := r.order.Back()
		entry := oldest.Value.(*registryEntry)
		r.order.Remove(oldest)
		delete(r.enrichers, entry.key)
		r.evictions++
		r.logger.Debug("enricher evicted", slog.String("key", security.MaskKey(entry.key)))
	}

	e := r.factory(apiKey)
	r.enrichers[apiKey] = r.order.PushFront(&registryEntry{key: apiKey, enricher: e})
	return e, nil
}

// Enrich resolves the Enricher for apiKey and runs it.
func (r *Registry) Enrich(ctx context.Context, p domain.Product, apiKey string) (domain.EnrichmentResult, error) {
	e, err := r.Get(apiKey)
	if err != nil {
		return domain.EnrichmentResult{}, err
	}
	return e.Enrich(ctx, p)
}

// Len returns the number of live enrichers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// Evictions returns how many enrichers were dropped to stay under the cap.
func (r *Registry) Evictions() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictions
}

// CacheStats sums cache counters over every live enricher.
func (r *Registry) CacheStats() cache.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total cache.Stats
	for elem := r.order.Front(); elem != nil; elem = elem.Next() {
		s := elem.Value.(*registryEntry).enricher.Cache().Stats()
		total.Hits += s.Hits
		total.Misses += s.Misses
		total.Evictions += s.Evictions
		total.Expired += s.Expired
		total.Size += s.Size
	}
	return total
}
