// Package enricher orchestrates cache lookup, rate limiting, retries and
// multi-model fallback to turn a product into a validated CO2 estimate.
package enricher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hpn/hpn-co2-enricher/internal/adapter"
	"github.com/hpn/hpn-co2-enricher/internal/cache"
	"github.com/hpn/hpn-co2-enricher/internal/domain"
	"github.com/hpn/hpn-co2-enricher/internal/parser"
	"github.com/hpn/hpn-co2-enricher/internal/prompt"
	"github.com/hpn/hpn-co2-enricher/internal/ratelimit"
	"github.com/hpn/hpn-co2-enricher/internal/retry"
)

// Enricher owns one cache and one rate limiter. It is safe for concurrent use;
// identical products in flight at the same time share a single model chain.
type Enricher struct {
	invoker  adapter.ModelInvoker
	models   []string
	cache    *cache.ResponseCache
	limiter  *ratelimit.Limiter
	retry    *retry.Policy
	genCfg   domain.GenerationConfig
	logger   *slog.Logger
	observer Observer
	group    singleflight.Group
}

// Option is a functional option for configuring an Enricher.
type Option func(*Enricher)

// WithModels sets the ordered candidate list. The first entry is tried first.
func WithModels(models []string) Option {
	return func(e *Enricher) {
		if len(models) > 0 {
			e.models = append([]string(nil), models...)
		}
	}
}

// WithCache sets the response cache.
func WithCache(c *cache.ResponseCache) Option {
	return func(e *Enricher) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLimiter sets the outbound call limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(e *Enricher) {
		if l != nil {
			e.limiter = l
		}
	}
}

// WithRetryPolicy sets the per-candidate retry policy.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(e *Enricher) {
		if p != nil {
			e.retry = p
		}
	}
}

// WithGenerationConfig overrides the sampling parameters.
func WithGenerationConfig(cfg domain.GenerationConfig) Option {
	return func(e *Enricher) {
		e.genCfg = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Enricher) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an Enricher that calls models through invoker.
func New(invoker adapter.ModelInvoker, opts ...Option) *Enricher {
	e := &Enricher{
		invoker:  invoker,
		models:   domain.DefaultModelCandidates(),
		genCfg:   domain.DefaultGenerationConfig,
		logger:   slog.Default(),
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil {
		e.cache = cache.New(cache.WithLogger(e.logger))
	}
	if e.limiter == nil {
		e.limiter = ratelimit.New(ratelimit.DefaultMinInterval)
	}
	if e.retry == nil {
		e.retry = retry.NewPolicy(retry.WithLogger(e.logger))
	}

	return e
}

// Models returns a copy of the candidate list.
func (e *Enricher) Models() []string {
	return append([]string(nil), e.models...)
}

// Cache exposes the enricher's response cache.
func (e *Enricher) Cache() *cache.ResponseCache {
	return e.cache
}

// Enrich returns a validated estimate for p.
//
// A cached result is returned without touching the limiter or the network.
// Otherwise each candidate is tried in order under the retry policy. A rate
// limit aborts the whole chain; any other failure moves on to the next
// candidate. When every candidate fails the result is an exhausted error
// wrapping the last failure.
//
// Concurrent calls for the same product share one chain. Each caller waits on
// its own ctx, and a chain cut short because the caller that started it went
// away is started again for the callers still waiting.
func (e *Enricher) Enrich(ctx context.Context, p domain.Product) (domain.EnrichmentResult, error) {
	fp := Fingerprint(p)

	for {
		if result, ok := e.cache.Get(fp); ok {
			e.logger.Debug("cache hit", slog.String("fingerprint", fp[:12]), slog.String("model", result.ModelUsed))
			e.observer.OnCacheHit(fp, result)
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.EnrichmentResult{}, err
		}

		ch := e.group.DoChan(fp, func() (any, error) {
			result, err := e.runChain(ctx, p, fp)
			if err != nil && ctx.Err() != nil {
				return nil, &abandonedError{err: err}
			}
			return result, err
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return domain.EnrichmentResult{}, ctx.Err()
		case res = <-ch:
		}

		if res.Shared {
			e.logger.Debug("joined in-flight enrichment", slog.String("fingerprint", fp[:12]))
		}

		var abandoned *abandonedError
		if errors.As(res.Err, &abandoned) {
			if err := ctx.Err(); err != nil {
				return domain.EnrichmentResult{}, err
			}
			e.logger.Debug("in-flight enrichment was cancelled by its initiator, restarting",
				slog.String("fingerprint", fp[:12]))
			continue
		}
		if res.Err != nil {
			return domain.EnrichmentResult{}, res.Err
		}
		return res.Val.(domain.EnrichmentResult), nil
	}
}

// abandonedError marks a chain that stopped because the ctx it ran on was done.
type abandonedError struct {
	err error
}

func (e *abandonedError) Error() string  { return e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }

func (e *Enricher) runChain(ctx context.Context, p domain.Product, fp string) (domain.EnrichmentResult, error) {
	text := prompt.Build(p)
	start := time.Now()

	var lastErr error
	for i, model := range e.models {
		result, err := e.tryModel(ctx, model, text)
		if err == nil {
			e.cache.Set(fp, result)
			latency := time.Since(start)
			e.logger.Info("product enriched",
				slog.String("product_id", p.ID),
				slog.String("model", model),
				slog.Float64("co2_kg", result.CO2Value),
				slog.Duration("latency", latency),
			)
			e.observer.OnSuccess(model, result, latency)
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.EnrichmentResult{}, ctxErr
		}

		if domain.IsRateLimit(err) {
			e.logger.Warn("rate limited, aborting model chain",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
			return domain.EnrichmentResult{}, err
		}

		lastErr = err
		next := ""
		if i+1 < len(e.models) {
			next = e.models[i+1]
		}
		e.logger.Warn("model failed",
			slog.String("model", model),
			slog.String("next_model", next),
			slog.String("kind", string(domain.KindOf(err))),
			slog.String("error", err.Error()),
		)
		e.observer.OnModelFailed(model, err, next)
	}

	return domain.EnrichmentResult{}, domain.NewExhaustedError(len(e.models), lastErr)
}

// tryModel runs limiter wait, invocation and parsing for one candidate under the retry policy.
func (e *Enricher) tryModel(ctx context.Context, model, text string) (domain.EnrichmentResult, error) {
	var result domain.EnrichmentResult

	err := e.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		e.logger.Debug("invoking model", slog.String("model", model), slog.Int("attempt", attempt))
		raw, err := e.invoker.Generate(ctx, model, text, e.genCfg)
		if err != nil {
			return domain.Classify(err, model)
		}

		parsed, err := parser.Parse(raw)
		if err != nil {
			return domain.Classify(err, model)
		}

		result = parsed.WithModel(model)
		return nil
	})

	return result, err
}
