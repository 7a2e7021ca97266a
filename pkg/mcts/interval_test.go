package mcts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTimeSource advances by a fixed step every time Now is called,
// giving tests full control over elapsed() without sleeping.
type fakeTimeSource struct {
	now  time.Time
	step time.Duration
}

func (f *fakeTimeSource) Now() time.Time {
	t := f.now
	f.now = f.now.Add(f.step)
	return t
}

// In deterministic mode, the predicate is evaluated exactly once every k
// calls, regardless of elapsed time, and time is never consulted.
func TestIntervalCheckerDeterministicFixedPeriod(t *testing.T) {
	src := &fakeTimeSource{now: time.Unix(0, 0), step: 0}
	timer := newSearchTimer(src)

	calls := 0
	predicate := func() bool { calls++; return true }

	c := newIntervalChecker(timer, 0.1, predicate)
	c.setDeterministic(3)

	require.False(t, c.check()) // call 1
	require.False(t, c.check()) // call 2
	require.True(t, c.check())  // call 3: predicate fires
	require.Equal(t, 1, calls)

	require.False(t, c.check()) // call 1 of next period
	require.False(t, c.check())
	require.True(t, c.check())
	require.Equal(t, 2, calls)
}

// A k of 0 is clamped to 1: the predicate runs on every call.
func TestIntervalCheckerDeterministicClampsZeroToOne(t *testing.T) {
	src := &fakeTimeSource{now: time.Unix(0, 0), step: 0}
	timer := newSearchTimer(src)
	calls := 0
	c := newIntervalChecker(timer, 0.1, func() bool { calls++; return false })
	c.setDeterministic(0)

	c.check()
	c.check()
	require.Equal(t, 2, calls)
}

// In adaptive (non-deterministic) mode, the sampling period grows when
// cheap calls arrive faster than one interval's worth of elapsed time,
// so the expensive predicate is consulted less often over time.
func TestIntervalCheckerAdaptiveSamplingGrowsPeriod(t *testing.T) {
	// Each call to Now() advances by 1ms; with a target interval of
	// 100ms, the checker should grow k well past its initial value of 1
	// after a few expensive evaluations.
	src := &fakeTimeSource{now: time.Unix(0, 0), step: time.Millisecond}
	timer := newSearchTimer(src)
	c := newIntervalChecker(timer, 0.1, func() bool { return false })

	require.Equal(t, uint64(1), c.k)
	c.check() // first call always evaluates (k starts at 1)
	firstK := c.k
	require.Greater(t, firstK, uint64(1), "k should grow once elapsed time is observed")

	for i := 0; i < int(firstK); i++ {
		c.check()
	}
	require.GreaterOrEqual(t, c.k, firstK)
}
