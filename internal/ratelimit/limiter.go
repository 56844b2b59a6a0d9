// Package ratelimit spaces outbound model calls by a minimum interval.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum spacing between two outbound calls.
const DefaultMinInterval = 1 * time.Second

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Limiter enforces a minimum interval between consecutive calls on one instance.
// Waiters are spaced, never dropped.
type Limiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	minInterval time.Duration
	last        time.Time
	now         func() time.Time
	sleep       Sleeper
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleeper replaces the context-aware sleep used while waiting.
func WithSleeper(s Sleeper) Option {
	return func(l *Limiter) {
		if s != nil {
			l.sleep = s
		}
	}
}

// New creates a Limiter. A non-positive interval disables spacing.
func New(minInterval time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}

	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	l.limiter = rate.NewLimiter(limit, 1)
	return l
}

// Wait blocks until the minimum interval since the previous call has elapsed,
// then records the current call. The reservation is released if ctx ends first.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	now := l.now()
	r := l.limiter.ReserveN(now, 1)
	l.mu.Unlock()

	if delay := r.DelayFrom(now); delay > 0 {
		if err := l.sleep(ctx, delay); err != nil {
			r.CancelAt(l.now())
			return err
		}
	}

	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
	return nil
}

// LastCall returns when the most recent call was released, or the zero time.
func (l *Limiter) LastCall() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// MinInterval returns the configured spacing.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
