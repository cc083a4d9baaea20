// Package cache provides the time-bounded maps and per-key refresh
// coalescing used by the brain store and the CRM gateway.
//
// Entries expire lazily: an expired value is simply not returned, eviction
// happens by overwrite on the next successful refresh. Refreshes for the
// same key are collapsed into one flight via KeyMutex.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// TTL is a map from string key to value with a fixed time-to-live.
//
// Reads are cheap and idempotent; stale reads are acceptable to callers.
// Writers are expected to hold the per-key coalescing lock for the refresh
// path, the internal mutex only protects the map itself.
type TTL[V any] struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry[V]

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a TTL cache. ttl <= 0 means entries never expire.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the value iff it was inserted no longer than ttl ago.
// Expired entries are left in place; Set overwrites them.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.insertedAt) > c.ttl {
		return zero, false
	}
	return e.value, true
}

// Set stores the value unconditionally, resetting its age.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SetNowFunc replaces the clock. Test hook.
func (c *TTL[V]) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// KeyMutex hands out one lazily-allocated mutex per key.
//
// Contract: at most one concurrent refresh per key. Other callers block on
// Lock, and once the first caller has published its result they re-read the
// now-warm cache instead of refetching. Locks are held only for the refresh
// duration, never across unrelated reads.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyMutex creates an empty per-key mutex set.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, allocating it on first use.
// The returned function releases it.
func (k *KeyMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
