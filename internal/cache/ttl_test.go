package cache

import (
	"testing"
	"time"

	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFake() *clock.Fake {
	return clock.NewFake(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))
}

func TestTTLGetSet(t *testing.T) {
	t.Parallel()
	c := NewTTL[string, int](newFake(), time.Minute, 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()
	fake := newFake()
	c := NewTTL[string, string](fake, time.Minute, 10)
	c.Set("k", "v")

	fake.Advance(59 * time.Second)
	_, ok := c.Get("k")
	require.True(t, ok, "access refreshes the entry")

	fake.Advance(59 * time.Second)
	_, ok = c.Get("k")
	require.True(t, ok)

	fake.Advance(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	c := NewTTL[int, int](newFake(), time.Hour, 2)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Get(1)
	c.Set(3, 3)

	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestTTLSweepAndDelete(t *testing.T) {
	t.Parallel()
	fake := newFake()
	c := NewTTL[string, int](fake, time.Minute, 10)
	c.Set("old", 1)
	fake.Advance(30 * time.Second)
	c.Set("new", 2)
	fake.Advance(45 * time.Second)

	assert.Equal(t, []int{1}, c.Sweep())
	assert.Equal(t, 1, c.Len())

	v, ok := c.Delete("new")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = c.Delete("new")
	assert.False(t, ok)
}

func TestNewTTLPanicsWithoutClock(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewTTL[string, int](nil, time.Minute, 1) })
}
