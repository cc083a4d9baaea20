// Package breaker implements the per-area circuit breaker that shields the
// CRM from repeated failing fetches.
//
// Areas are coarse ("houses", "elder", "finance"). After three consecutive
// failures the circuit opens for 30 seconds; while open, callers must not
// attempt a live fetch and serve the last successful value instead, marking
// the response stale.
package breaker

import (
	"sync"
	"time"
)

// Area identifies one protected data area.
type Area string

const (
	AreaHouses  Area = "houses"
	AreaElder   Area = "elder"
	AreaFinance Area = "finance"
)

const (
	// DefaultThreshold is the consecutive-failure count that opens a circuit.
	DefaultThreshold = 3
	// DefaultOpenWindow is how long an opened circuit stays open.
	DefaultOpenWindow = 30 * time.Second
)

type circuit struct {
	fails       int
	openedUntil time.Time
	lastGood    any
	hasLastGood bool
}

// Breaker tracks failure counts and last-good values per area.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	openFor   time.Duration
	circuits  map[Area]*circuit

	now func() time.Time
}

// New creates a breaker. Non-positive arguments fall back to defaults.
func New(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if openFor <= 0 {
		openFor = DefaultOpenWindow
	}
	return &Breaker{
		threshold: threshold,
		openFor:   openFor,
		circuits:  make(map[Area]*circuit),
		now:       time.Now,
	}
}

func (b *Breaker) circuitLocked(area Area) *circuit {
	c, ok := b.circuits[area]
	if !ok {
		c = &circuit{}
		b.circuits[area] = c
	}
	return c
}

// IsOpen reports whether live fetches for the area are currently forbidden.
func (b *Breaker) IsOpen(area Area) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(area)
	return b.now().Before(c.openedUntil)
}

// RecordFailure increments the failure counter; reaching the threshold opens
// the circuit for the configured window and resets the counter.
func (b *Breaker) RecordFailure(area Area) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(area)
	c.fails++
	if c.fails >= b.threshold {
		c.openedUntil = b.now().Add(b.openFor)
		c.fails = 0
	}
}

// RecordSuccess closes the circuit and stores value as the last-good result.
func (b *Breaker) RecordSuccess(area Area, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(area)
	c.fails = 0
	c.openedUntil = time.Time{}
	c.lastGood = value
	c.hasLastGood = true
}

// LastGood returns the most recent successful value for the area, if any.
func (b *Breaker) LastGood(area Area) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.circuitLocked(area)
	return c.lastGood, c.hasLastGood
}

// SetNowFunc replaces the clock. Test hook.
func (b *Breaker) SetNowFunc(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}
