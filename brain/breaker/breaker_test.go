package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(3, 30*time.Second)
	now := time.Now()
	b.SetNowFunc(func() time.Time { return now })

	b.RecordFailure(AreaHouses)
	b.RecordFailure(AreaHouses)
	assert.False(t, b.IsOpen(AreaHouses), "two failures must not open the circuit")

	b.RecordFailure(AreaHouses)
	assert.True(t, b.IsOpen(AreaHouses))

	// Still open just before the window elapses.
	now = now.Add(29 * time.Second)
	assert.True(t, b.IsOpen(AreaHouses))

	// Closed once the window has passed.
	now = now.Add(2 * time.Second)
	assert.False(t, b.IsOpen(AreaHouses))
}

func TestBreakerSuccessCloses(t *testing.T) {
	b := New(3, 30*time.Second)
	now := time.Now()
	b.SetNowFunc(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		b.RecordFailure(AreaFinance)
	}
	require.True(t, b.IsOpen(AreaFinance))

	b.RecordSuccess(AreaFinance, "fresh")
	assert.False(t, b.IsOpen(AreaFinance))

	got, ok := b.LastGood(AreaFinance)
	require.True(t, ok)
	assert.Equal(t, "fresh", got)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New(3, 30*time.Second)

	b.RecordFailure(AreaElder)
	b.RecordFailure(AreaElder)
	b.RecordSuccess(AreaElder, nil)
	b.RecordFailure(AreaElder)
	b.RecordFailure(AreaElder)
	assert.False(t, b.IsOpen(AreaElder), "streak must reset on success")
}

func TestBreakerAreasAreIndependent(t *testing.T) {
	b := New(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		b.RecordFailure(AreaHouses)
	}
	assert.True(t, b.IsOpen(AreaHouses))
	assert.False(t, b.IsOpen(AreaElder))
	assert.False(t, b.IsOpen(AreaFinance))
}

func TestBreakerLastGoodAbsentInitially(t *testing.T) {
	b := New(0, 0)
	_, ok := b.LastGood(AreaHouses)
	assert.False(t, ok)
}
