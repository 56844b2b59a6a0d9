package domain

import (
	"errors"
	"sync"
	"time"
)

// ErrNoKeysAvailable is returned when every server-side key is cooling down or none is configured.
var ErrNoKeysAvailable = errors.New("no gemini api keys available")

// KeyRing hands out server-side Gemini API keys round-robin.
// A key that hit the provider's rate limit is parked for the cooldown and
// rejoins the rotation on its own once the cooldown has passed.
type KeyRing struct {
	mu        sync.Mutex
	keys      []string
	throttled map[string]time.Time
	next      int
	cooldown  time.Duration
	now       func() time.Time
}

// NewKeyRing builds a ring from keys, dropping blanks and duplicates while keeping order.
// A zero cooldown parks throttled keys until Release is called.
func NewKeyRing(keys []string, cooldown time.Duration) *KeyRing {
	r := &KeyRing{
		keys:      make([]string, 0, len(keys)),
		throttled: make(map[string]time.Time),
		cooldown:  cooldown,
		now:       time.Now,
	}

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		r.keys = append(r.keys, key)
	}
	return r
}

// Next returns the next key that is not cooling down.
func (r *KeyRing) Next() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.releaseExpiredLocked()

	for range r.keys {
		key := r.keys[r.next%len(r.keys)]
		r.next++
		if _, parked := r.throttled[key]; !parked {
			return key, nil
		}
	}
	return "", ErrNoKeysAvailable
}

// MarkThrottled parks key for the cooldown. Unknown keys are ignored.
func (r *KeyRing) MarkThrottled(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ownsLocked(key) {
		return
	}
	r.throttled[key] = r.now()
}

// Release puts a parked key back into rotation immediately.
func (r *KeyRing) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.throttled, key)
}

// IsThrottled reports whether key is currently parked.
func (r *KeyRing) IsThrottled(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseExpiredLocked()
	_, parked := r.throttled[key]
	return parked
}

// Owns reports whether key belongs to the ring.
func (r *KeyRing) Owns(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownsLocked(key)
}

// Counts returns the number of keys in rotation and the number parked.
func (r *KeyRing) Counts() (active, throttled int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseExpiredLocked()
	return len(r.keys) - len(r.throttled), len(r.throttled)
}

// Size returns the total number of managed keys.
func (r *KeyRing) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Cooldown returns how long a throttled key is skipped.
func (r *KeyRing) Cooldown() time.Duration {
	return r.cooldown
}

func (r *KeyRing) ownsLocked(key string) bool {
	for _, k := range r.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (r *KeyRing) releaseExpiredLocked() {
	if r.cooldown == 0 {
		return
	}
	now := r.now()
	for key, since := range r.throttled {
		if now.Sub(since) >= r.cooldown {
			delete(r.throttled, key)
		}
	}
}
