package mcts

// Params is the search parameter bundle of spec §3: a value recognized
// for reuse compatibility across consecutive searches. Two searches may
// reuse a tree only if ReuseEquivalent reports true on the current and
// previous Params.
type Params struct {
	// UCTConstant is the exploration constant C in the bias term.
	UCTConstant float64

	// ExpandThreshold is the minimum visit count a leaf must reach
	// before its children are materialized (spec glossary).
	ExpandThreshold Result

	// RaveEnabled turns on the RAVE-augmented selection rule.
	RaveEnabled bool

	// RaveEquivalence is the RAVE beta-formula equivalence parameter.
	RaveEquivalence Result

	// WeightRaveUpdates enables the linearly-decreasing RAVE update
	// weight instead of a uniform weight of 1.
	WeightRaveUpdates bool

	// RaveCheckSame disables a RAVE update for a child move already
	// played earlier by a different player (spec §4.3, §9).
	RaveCheckSame bool

	// ReplyHeuristic enables the Last-Good-Reply playout bias.
	ReplyHeuristic bool

	// PruneStartCount is the initial prune_min_count threshold (spec
	// §4.2 step 6).
	PruneStartCount Result

	// MemoryBudget is the total byte budget for BOTH arenas (live +
	// scratch); the per-arena node capacity is MemoryBudget/(2*nodeSize).
	MemoryBudget int64

	// Deterministic disables time-based dynamics in the interval
	// checker, for reproducible single-threaded runs (spec §5).
	Deterministic bool

	// NThreads is the configured worker count; the controller thread
	// itself acts as worker 0, so NThreads-1 additional goroutines are
	// spawned.
	NThreads int

	// PruneEnabled controls whether the controller prunes and retries on
	// arena exhaustion. Disabled, a full arena ends the search immediately
	// with the current best move (spec §9 Open Question: set_prune_full_tree
	// preserved as a toggle rather than removed). Not part of reuse
	// compatibility: it changes how memory pressure is handled, not the
	// shape or statistics semantics of the tree itself.
	PruneEnabled bool
}

// DefaultParams returns a reasonable starting configuration.
func DefaultParams() Params {
	return Params{
		UCTConstant:       0.7,
		ExpandThreshold:   1,
		RaveEnabled:       true,
		RaveEquivalence:   1000,
		WeightRaveUpdates: true,
		RaveCheckSame:     false,
		ReplyHeuristic:    true,
		PruneStartCount:   16,
		MemoryBudget:      256 << 20,
		Deterministic:     false,
		NThreads:          min(8, defaultHardwareParallelism()),
		PruneEnabled:      true,
	}
}

// ReuseEquivalent reports whether p and other agree on every field
// spec §3 lists as relevant to subtree-reuse compatibility. Fields added
// to Params in the future for purposes unrelated to tree shape or
// statistics semantics must not be added here.
func (p Params) ReuseEquivalent(other Params) bool {
	return p.UCTConstant == other.UCTConstant &&
		p.ExpandThreshold == other.ExpandThreshold &&
		p.RaveEnabled == other.RaveEnabled &&
		p.RaveEquivalence == other.RaveEquivalence &&
		p.WeightRaveUpdates == other.WeightRaveUpdates &&
		p.RaveCheckSame == other.RaveCheckSame &&
		p.ReplyHeuristic == other.ReplyHeuristic &&
		p.PruneStartCount == other.PruneStartCount &&
		p.MemoryBudget == other.MemoryBudget &&
		p.Deterministic == other.Deterministic &&
		p.NThreads == other.NThreads
}

// SearchLimits bounds one call to Controller.Search: exactly one of
// MaxCount/MaxTime is the active budget, per spec §4.2 (the other must
// be left at its zero/large value).
type SearchLimits struct {
	// MaxCount is the simulation-count budget; zero means "use MaxTime
	// instead".
	MaxCount Result

	// MinSimulations is the minimum number of simulations to run in this
	// call, regardless of early-termination predicates.
	MinSimulations Result

	// MaxTime is the wall-clock budget, used only when MaxCount == 0.
	MaxTime float64 // seconds

	// AlwaysSearch controls whether an aborted reuse extraction still
	// leads to a best-effort search on the partially extracted subtree.
	AlwaysSearch bool
}
