package domain

import (
	"sync"
	"testing"
	"time"
)

func TestNewKeyRing(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		expected int
	}{
		{name: "normal keys", keys: []string{"key1", "key2", "key3"}, expected: 3},
		{name: "empty slice", keys: []string{}, expected: 0},
		{name: "nil slice", keys: nil, expected: 0},
		{name: "with duplicates", keys: []string{"key1", "key2", "key1", "key3", "key2"}, expected: 3},
		{name: "with empty strings", keys: []string{"key1", "", "key2", ""}, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewKeyRing(tt.keys, time.Minute)
			if got := r.Size(); got != tt.expected {
				t.Errorf("Size() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestKeyRing_RoundRobin(t *testing.T) {
	keys := []string{"key1", "key2", "key3"}
	r := NewKeyRing(keys, 0)

	for i := 0; i < 9; i++ {
		key, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if key != keys[i%3] {
			t.Errorf("iteration %d: got %s, want %s", i, key, keys[i%3])
		}
	}
}

func TestKeyRing_NoKeys(t *testing.T) {
	r := NewKeyRing(nil, 0)

	if _, err := r.Next(); err != ErrNoKeysAvailable {
		t.Errorf("Next() error = %v, want %v", err, ErrNoKeysAvailable)
	}
}

func TestKeyRing_MarkThrottledSkipsKey(t *testing.T) {
	r := NewKeyRing([]string{"key1", "key2", "key3"}, 0)

	r.MarkThrottled("key2")

	active, throttled := r.Counts()
	if active != 2 || throttled != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", active, throttled)
	}
	for i := 0; i < 10; i++ {
		key, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if key == "key2" {
			t.Error("Next() returned throttled key 'key2'")
		}
	}
}

func TestKeyRing_AllThrottled(t *testing.T) {
	r := NewKeyRing([]string{"key1", "key2"}, 0)

	r.MarkThrottled("key1")
	r.MarkThrottled("key2")

	if _, err := r.Next(); err != ErrNoKeysAvailable {
		t.Errorf("Next() error = %v, want %v", err, ErrNoKeysAvailable)
	}

	r.Release("key2")
	key, err := r.Next()
	if err != nil || key != "key2" {
		t.Errorf("Next() after Release = (%q, %v), want (key2, nil)", key, err)
	}
}

func TestKeyRing_CooldownExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewKeyRing([]string{"key1", "key2"}, time.Minute)
	r.now = func() time.Time { return now }

	r.MarkThrottled("key1")
	if !r.IsThrottled("key1") {
		t.Fatal("IsThrottled(key1) = false immediately after MarkThrottled")
	}

	now = now.Add(59 * time.Second)
	if !r.IsThrottled("key1") {
		t.Error("IsThrottled(key1) = false before the cooldown elapsed")
	}

	now = now.Add(time.Second)
	if r.IsThrottled("key1") {
		t.Error("IsThrottled(key1) = true after the cooldown elapsed")
	}
}

func TestKeyRing_UnknownKey(t *testing.T) {
	r := NewKeyRing([]string{"key1", "key2"}, 0)

	r.MarkThrottled("unknown_key")

	if r.Owns("unknown_key") {
		t.Error("Owns(unknown_key) = true")
	}
	if active, _ := r.Counts(); active != 2 {
		t.Errorf("active = %d after throttling unknown key, want 2", active)
	}
}

func TestKeyRing_Concurrent(t *testing.T) {
	r := NewKeyRing([]string{"key1", "key2", "key3", "key4"}, 0)

	const goroutines = 50
	const iterations = 200

	var mu sync.Mutex
	counts := make(map[string]int)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				key, err := r.Next()
				if err != nil {
					t.Errorf("Next() error = %v", err)
					return
				}
				mu.Lock()
				counts[key]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for key, n := range counts {
		if n != goroutines*iterations/4 {
			t.Errorf("key %s used %d times, want %d", key, n, goroutines*iterations/4)
		}
	}
}
