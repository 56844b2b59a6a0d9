// Package retry runs an operation with capped exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// Default schedule: 1s, 2s, 4s between the four attempts, capped at 5s.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 5 * time.Second
)

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Policy retries transient failures. Rate-limit failures are returned at once.
type Policy struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	timer        backoff.Timer
	logger       *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxRetries sets how many retries follow the first attempt.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithDelays sets the first delay and the cap. Each retry doubles the previous delay.
func WithDelays(initial, limit time.Duration) Option {
	return func(p *Policy) {
		if initial > 0 {
			p.initialDelay = initial
		}
		if limit > 0 {
			p.maxDelay = limit
		}
	}
}

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(t backoff.Timer) Option {
	return func(p *Policy) {
		p.timer = t
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPolicy creates a Policy with the default schedule.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		maxRetries:   DefaultMaxRetries,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxDelay < p.initialDelay {
		p.maxDelay = p.initialDelay
	}
	return p
}

// MaxRetries returns the configured retry count.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// schedule builds a fresh, jitter-free backoff bound to ctx.
func (p *Policy) schedule(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.initialDelay
	expo.MaxInterval = p.maxDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.maxRetries)), ctx)
}

// Do runs op until it succeeds, fails with a rate limit, or the retries run out.
// The last error is returned unchanged. If ctx is cancelled while waiting, ctx.Err() is returned.
func (p *Policy) Do(ctx context.Context, op Operation) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx, attempt)
		if err != nil && domain.IsRateLimit(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		p.logger.Warn("attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.maxRetries+1),
			slog.Duration("delay", next),
			slog.String("error", err.Error()),
		)
	}

	return backoff.RetryNotifyWithTimer(operation, p.schedule(ctx), notify, p.timer)
}
