package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manual clock whose sleeper advances time instead of blocking.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func approx(got, want time.Duration) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < time.Millisecond
}

func TestLimiter_Wait_Spacing(t *testing.T) {
	clock := newFakeClock()
	l := New(time.Second, WithClock(clock.Now), WithSleeper(clock.Sleep))
	ctx := context.Background()

	steps := []struct {
		name      string
		advance   time.Duration
		wantSleep time.Duration
	}{
		{"first call never waits", 0, 0},
		{"call 300ms later waits the remaining 700ms", 300 * time.Millisecond, 700 * time.Millisecond},
		{"back-to-back call waits a full interval", 0, time.Second},
		{"call after a long gap does not wait", 2 * time.Second, 0},
	}

	for _, step := range steps {
		clock.Advance(step.advance)
		before := len(clock.Sleeps())

		if err := l.Wait(ctx); err != nil {
			t.Fatalf("%s: Wait() error = %v", step.name, err)
		}

		sleeps := clock.Sleeps()[before:]
		switch {
		case step.wantSleep == 0 && len(sleeps) != 0:
			t.Errorf("%s: slept %v, want no sleep", step.name, sleeps)
		case step.wantSleep > 0 && (len(sleeps) != 1 || !approx(sleeps[0], step.wantSleep)):
			t.Errorf("%s: slept %v, want %v", step.name, sleeps, step.wantSleep)
		}
		if !l.LastCall().Equal(clock.Now()) {
			t.Errorf("%s: LastCall() = %v, want %v", step.name, l.LastCall(), clock.Now())
		}
	}
}

func TestLimiter_Wait_ZeroIntervalNeverSleeps(t *testing.T) {
	clock := newFakeClock()
	l := New(0, WithClock(clock.Now), WithSleeper(clock.Sleep))

	for i := 0; i < 5; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if s := clock.Sleeps(); len(s) != 0 {
		t.Errorf("sleeps = %v, want none", s)
	}
	if l.MinInterval() != 0 {
		t.Errorf("MinInterval() = %v, want 0", l.MinInterval())
	}
}

func TestLimiter_Wait_ContextCancelled(t *testing.T) {
	l := New(time.Hour)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Wait() blocked for %v after cancellation", time.Since(start))
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := l.Wait(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() on cancelled ctx error = %v, want context.Canceled", err)
	}
}

func TestLimiter_Wait_ConcurrentCallersAreSpaced(t *testing.T) {
	l := New(30 * time.Millisecond)

	const callers = 4
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// Four calls need at least three full intervals between them.
	if elapsed := time.Since(start); elapsed < 85*time.Millisecond {
		t.Errorf("4 calls finished in %v, want >= ~90ms", elapsed)
	}
}
