package main

import (
	"log/slog"

	"github.com/hpn/hpn-co2-enricher/internal/adapter"
	"github.com/hpn/hpn-co2-enricher/internal/cache"
	"github.com/hpn/hpn-co2-enricher/internal/config"
	"github.com/hpn/hpn-co2-enricher/internal/enricher"
	"github.com/hpn/hpn-co2-enricher/internal/ratelimit"
	"github.com/hpn/hpn-co2-enricher/internal/retry"
)

// newRegistry builds the per-key enricher registry from configuration.
// observer may be nil.
func newRegistry(cfg *config.Configuration, logger *slog.Logger, observer enricher.Observer) *enricher.Registry {
	g := cfg.Gemini
	e := cfg.Enrichment

	return enricher.NewRegistry(func(apiKey string) *enricher.Enricher {
		opts := []enricher.Option{
			enricher.WithModels(g.Models),
			enricher.WithCache(cache.New(
				cache.WithTTL(e.CacheTTL),
				cache.WithMaxEntries(e.CacheMaxEntries),
				cache.WithLogger(logger),
			)),
			enricher.WithLimiter(ratelimit.New(e.MinRequestInterval)),
			enricher.WithRetryPolicy(retry.NewPolicy(
				retry.WithMaxRetries(e.MaxRetries),
				retry.WithDelays(e.InitialRetryDelay, e.MaxRetryDelay),
				retry.WithLogger(logger),
			)),
			enricher.WithLogger(logger),
		}
		if observer != nil {
			opts = append(opts, enricher.WithObserver(observer))
		}

		invoker := adapter.NewGeminiAdapter(apiKey,
			adapter.WithBaseURL(g.BaseURL),
			adapter.WithTimeout(g.Timeout),
		)
		return enricher.New(invoker, opts...)
	}, enricher.WithMaxEnrichers(e.MaxEnrichers), enricher.WithRegistryLogger(logger))
}
