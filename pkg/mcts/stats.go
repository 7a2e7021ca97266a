package mcts

import (
	"math"
	"sync/atomic"
)

// DirtyStat is the "dirty-lock-free" running mean described in spec §4.4:
// it stores (count, mean) as two independently-atomic fields and updates
// them with the incremental formula mean += weight*(x-mean)/newCount,
// publishing the mean with a Store and the count with a compare-and-swap
// that never lowers it. A concurrent reader may observe a transiently
// inconsistent pair (new count, old mean, or vice versa); concurrent
// writers may lose individual increments to each other, but the count
// never moves backwards. Both are acceptable: the search only needs the statistics to
// converge approximately, never to be exact under a race.
//
// Each field is itself always read through sync/atomic, so this is not a
// data race in the Go memory model sense -- only an application-level
// "dirty read" of the pair, exactly the contract spec §9 asks for
// (accept tearing between fields; never take a lock on this path).
//
// The single-threaded, strict counterpart is StrictStat, used for
// per-worker bookkeeping that is never touched by another goroutine.
type DirtyStat struct {
	count atomic.Uint64 // bits of a float64 weight-sum ("count")
	mean  atomic.Uint64 // bits of a float64 running mean
}

// Clear resets the statistic to zero count with the given mean, used to
// seed a freshly allocated node's tie value or a domain-provided prior.
func (s *DirtyStat) Clear(initMean Result) {
	s.count.Store(0)
	s.mean.Store(math.Float64bits(initMean))
}

// ClearValue resets only the mean, leaving count untouched. Used when
// reusing a followup root: the node's accumulated visit count is kept
// (it still reflects real search effort spent at that position), only
// its value is reset to a neutral prior.
func (s *DirtyStat) ClearValue(initMean Result) {
	s.mean.Store(math.Float64bits(initMean))
}

// Seed sets count and mean directly, without going through Add. Used to
// materialize a domain-provided (InitCount, InitValue) prior on a newly
// expanded child.
func (s *DirtyStat) Seed(count, mean Result) {
	s.count.Store(math.Float64bits(count))
	s.mean.Store(math.Float64bits(mean))
}

// Count returns the current weight-sum ("visit count" for an unweighted
// stat).
func (s *DirtyStat) Count() Result {
	return math.Float64frombits(s.count.Load())
}

// Mean returns the current running mean.
func (s *DirtyStat) Mean() Result {
	return math.Float64frombits(s.mean.Load())
}

// Add records a new outcome with weight 1 (the ordinary visit-count
// case).
func (s *DirtyStat) Add(x Result) {
	s.AddWeighted(x, 1)
}

// AddWeighted records a new outcome with an arbitrary weight; used by
// the RAVE accumulator, which weighs updates by the original paper's
// "weight decreasing across the simulation" scheme (spec §4.3).
func (s *DirtyStat) AddWeighted(x, weight Result) {
	mean := s.Mean()
	count := s.Count() + weight
	if count <= 0 {
		return
	}
	mean += weight * (x - mean) / count
	// Order matches the publication contract: a reader who loads the new
	// count before the new mean merely sees a slightly stale mean, never
	// a torn float64 bit pattern. A writer whose count is already behind
	// a concurrent writer's leaves the count alone instead of rewinding it.
	for {
		old := s.count.Load()
		if math.Float64frombits(old) >= count || s.count.CompareAndSwap(old, math.Float64bits(count)) {
			break
		}
	}
	s.mean.Store(math.Float64bits(mean))
}

// Snapshot returns a non-atomic copy of the current (count, mean) pair,
// used when deep-copying a subtree (copy_subtree / extract_subtree):
// the copy only needs to be internally consistent with itself, not with
// the live source node it was read from.
func (s *DirtyStat) Snapshot() DirtyStat {
	var out DirtyStat
	out.count.Store(s.count.Load())
	out.mean.Store(s.mean.Load())
	return out
}

// StrictStat is a plain, single-threaded running mean: no atomics, used
// for per-worker accumulators (e.g. simulation-length statistics) that
// are never observed by another goroutine.
type StrictStat struct {
	count Result
	mean  Result
}

func (s *StrictStat) Clear() { s.count, s.mean = 0, 0 }

func (s *StrictStat) Add(x Result) {
	s.count++
	s.mean += (x - s.mean) / s.count
}

func (s *StrictStat) Count() Result { return s.count }
func (s *StrictStat) Mean() Result  { return s.mean }
