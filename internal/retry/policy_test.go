package retry

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// fakeTimer fires immediately and records every requested delay.
type fakeTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 16)}
}

func (f *fakeTimer) Start(d time.Duration) {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	f.c <- time.Time{}
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func (f *fakeTimer) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

func TestPolicy_Do(t *testing.T) {
	transient := domain.NewTransportError("boom", nil)

	tests := []struct {
		name         string
		maxRetries   int
		failures     int   // attempts that fail before success; -1 fails forever
		failWith     error // error returned by failing attempts
		wantErr      error
		wantAttempts int
		wantDelays   []time.Duration
	}{
		{
			name:         "first attempt succeeds",
			maxRetries:   3,
			failures:     0,
			wantAttempts: 1,
		},
		{
			name:         "succeeds on fourth attempt",
			maxRetries:   3,
			failures:     3,
			failWith:     transient,
			wantAttempts: 4,
			wantDelays:   []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
		{
			name:         "exhausts retries and returns last error",
			maxRetries:   3,
			failures:     -1,
			failWith:     transient,
			wantErr:      transient,
			wantAttempts: 4,
			wantDelays:   []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
		{
			name:         "delay is capped at five seconds",
			maxRetries:   5,
			failures:     -1,
			failWith:     transient,
			wantErr:      transient,
			wantAttempts: 6,
			wantDelays:   []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second},
		},
		{
			name:         "rate limit is never retried",
			maxRetries:   3,
			failures:     -1,
			failWith:     domain.NewRateLimitError("", nil),
			wantErr:      domain.ErrRateLimited,
			wantAttempts: 1,
		},
		{
			name:         "zero retries means one attempt",
			maxRetries:   0,
			failures:     -1,
			failWith:     transient,
			wantErr:      transient,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timer := newFakeTimer()
			policy := NewPolicy(WithMaxRetries(tt.maxRetries), WithTimer(timer))

			attempts := 0
			err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
				attempts++
				if attempt != attempts {
					t.Errorf("attempt = %d, want %d", attempt, attempts)
				}
				if tt.failures < 0 || attempts <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if tt.wantErr == nil && err != nil {
				t.Fatalf("Do() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Do() error = %v, want %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if got := timer.Delays(); len(got) != 0 || len(tt.wantDelays) != 0 {
				if !reflect.DeepEqual(got, tt.wantDelays) {
					t.Errorf("delays = %v, want %v", got, tt.wantDelays)
				}
			}
		})
	}
}

func TestPolicy_Do_RateLimitReturnedUnwrapped(t *testing.T) {
	rl := domain.NewRateLimitError("quota", nil)
	policy := NewPolicy(WithTimer(newFakeTimer()))

	err := policy.Do(context.Background(), func(context.Context, int) error { return rl })

	var ee *domain.EnrichError
	if !errors.As(err, &ee) || ee != rl {
		t.Errorf("Do() error = %#v, want the original rate-limit error", err)
	}
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := NewPolicy(WithDelays(time.Hour, time.Hour))

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context, int) error {
			attempts++
			return domain.NewTransportError("down", nil)
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do() did not return after cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestNewPolicy_Options(t *testing.T) {
	p := NewPolicy()
	if p.maxRetries != DefaultMaxRetries || p.initialDelay != DefaultInitialDelay || p.maxDelay != DefaultMaxDelay {
		t.Errorf("defaults = (%d, %v, %v)", p.maxRetries, p.initialDelay, p.maxDelay)
	}

	p = NewPolicy(WithMaxRetries(-1), WithDelays(10*time.Second, time.Second))
	if p.maxRetries != DefaultMaxRetries {
		t.Errorf("negative retries accepted: %d", p.maxRetries)
	}
	if p.maxDelay != 10*time.Second {
		t.Errorf("maxDelay = %v, want raised to initial delay", p.maxDelay)
	}
	if p.MaxRetries() != DefaultMaxRetries {
		t.Errorf("MaxRetries() = %d", p.MaxRetries())
	}
}
