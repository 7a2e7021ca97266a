package mcts

import "sync/atomic"

// AbortFlag is the process-wide, cooperative cancellation flag of spec
// §5: any goroutine (the controller, an embedder, a UI thread in some
// other process boundary) may set it; each worker checks it once per
// iteration, before starting the next simulation.
type AbortFlag struct {
	v atomic.Bool
}

func (f *AbortFlag) Set(abort bool) { f.v.Store(abort) }
func (f *AbortFlag) Get() bool      { return f.v.Load() }

// expensivePredicate is the costly check an intervalChecker wraps (e.g.
// "time exceeded" or "cannot change"), spec §4.6.
type expensivePredicate func() bool

// intervalChecker counts cheap calls and consults the expensive
// predicate only every k calls, adjusting k so the expensive path runs
// roughly every targetInterval seconds (spec §4.6). In deterministic
// mode k is fixed and time is never consulted, so the search is
// reproducible under a single worker with a fixed seed (spec §5).
type intervalChecker struct {
	timer       *searchTimer
	predicate   expensivePredicate
	interval    float64 // seconds
	k           uint64  // current sampling period
	calls       uint64
	lastCheckAt float64 // elapsed() at last expensive evaluation
	deterministic bool
}

func newIntervalChecker(timer *searchTimer, interval float64, predicate expensivePredicate) *intervalChecker {
	return &intervalChecker{
		timer:     timer,
		predicate: predicate,
		interval:  interval,
		k:         1,
	}
}

// setDeterministic fixes the sampling period and disables the adaptive,
// time-based adjustment.
func (c *intervalChecker) setDeterministic(k uint64) {
	c.deterministic = true
	if k < 1 {
		k = 1
	}
	c.k = k
}

// check evaluates the expensive predicate once every c.k calls and
// returns its result; on the calls in between it returns false (cheap
// calls never trigger an abort by themselves).
func (c *intervalChecker) check() bool {
	c.calls++
	if c.calls < c.k {
		return false
	}
	c.calls = 0

	if !c.deterministic {
		now := c.timer.elapsed()
		elapsedSinceLast := now - c.lastCheckAt
		c.lastCheckAt = now
		if elapsedSinceLast > 0 {
			// Adjust k so that, at the observed rate of cheap calls per
			// second, the expensive path runs about once per interval.
			ratio := c.interval / elapsedSinceLast
			newK := float64(c.k) * ratio
			if newK < 1 {
				newK = 1
			}
			if newK > 1e7 {
				newK = 1e7
			}
			c.k = uint64(newK)
		}
	}

	return c.predicate()
}
