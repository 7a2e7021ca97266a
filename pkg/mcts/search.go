package mcts

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
)

// maxExactCount is the largest visit count a float64 mean/count pair can
// still represent exactly (2^53); approaching it is treated as a
// termination condition rather than let the running-mean arithmetic
// silently lose precision (spec §7).
const maxExactCount Result = 1 << 53

// assumedSimsPerSecond is used only to decide whether a requested search
// is so short that multi-threading would do more harm than good (spec
// §4.2 step 3). The original engine exposes this as an overridable
// virtual method; we fix it as a constant since spec.md's component
// table does not name it as a pluggable hook (documented in DESIGN.md).
const assumedSimsPerSecond = 2000.0

// Controller drives the per-search lifecycle: subtree reuse, worker
// launch, abort handling, memory-triggered pruning and final move
// selection (spec §4.2). One Controller owns exactly two node arenas
// (live + scratch) sized from a single memory budget.
type Controller[M Move] struct {
	hooks  HostHooks[M]
	params Params

	live, scratch *arena[M]

	lgr   *lastGoodReply[M]
	abort AbortFlag

	rootVal []DirtyStat // per-player root value; reset to the tie value by every Search and never added to

	hasLastParams bool
	lastParams    Params

	lastMove    M
	lastHadMove bool

	nuSimulations atomic.Uint64 // shared counter across worker goroutines within one Search call

	// lastMeanSimLen is worker 0's StrictStat.Mean() snapshot from the
	// most recent search, written only by thread 0 in searchLoop and read
	// only after runWorkers' wg.Wait() returns, so the WaitGroup's
	// happens-before edge makes the plain field safe without atomics.
	lastMeanSimLen Result

	callback func(elapsed, estimatedRemaining time.Duration)
	logger   zerolog.Logger

	mu sync.Mutex // serializes overlapping calls to Search
}

// NewController creates a controller over a fresh, empty tree sized from
// params.MemoryBudget (spec §3: N = memory / (2*sizeof(Node))).
func NewController[M Move](hooks HostHooks[M], params Params) *Controller[M] {
	nodeSize := int64(unsafe.Sizeof(node[M]{}))
	capacity := int32(params.MemoryBudget / (2 * nodeSize))
	if capacity < 2 {
		capacity = 2
	}
	c := &Controller[M]{
		hooks:   hooks,
		params:  params,
		live:    newArena[M](capacity),
		scratch: newArena[M](capacity),
		lgr:     newLastGoodReply[M](hooks.NullMove()),
		logger:  zerolog.Nop(),
		rootVal: make([]DirtyStat, hooks.NuPlayers()),
	}
	c.live.clear(hooks.TieValue())
	return c
}

// SetLogger attaches a zerolog logger used for search lifecycle events
// (reuse outcome, prune cycles, out-of-memory, count saturation, and
// debug-level threading and simulation-length notes). The start and the
// normal end of a search are not logged. The default is a no-op logger.
func (c *Controller[M]) SetLogger(l zerolog.Logger) { c.logger = l }

// SetCallback installs a function invoked roughly every 0.1s during a
// search with the elapsed time and an estimate of the time remaining
// (spec §6 Observation).
func (c *Controller[M]) SetCallback(f func(elapsed, estimatedRemaining time.Duration)) {
	c.callback = f
}

// Abort returns the process-wide cooperative cancellation flag; any
// goroutine may call Abort().Set(true) to stop an in-flight search.
func (c *Controller[M]) Abort() *AbortFlag { return &c.abort }

// NuSimulations returns the number of simulations performed in the most
// recent (or in-flight) search.
func (c *Controller[M]) NuSimulations() uint64 { return c.nuSimulations.Load() }

// RootValue returns the mean held by player p's root-value statistic.
// Search resets that statistic to the tie value at its start and no
// simulation adds evaluations to it, so RootValue reports the tie value,
// not the mean evaluation of the most recent search.
func (c *Controller[M]) RootValue(p Player) Result { return c.rootVal[p].Mean() }

// LastMove returns the move chosen by the most recent successful Search
// call.
func (c *Controller[M]) LastMove() (M, bool) { return c.lastMove, c.lastHadMove }

// NodeCount returns the number of live nodes in the current tree
// (including the root).
func (c *Controller[M]) NodeCount() int32 { return c.live.nuNodes() }

// MeanSimulationLength returns worker 0's mean per-iteration move count
// (in-tree plus playout) from the most recent search, for diagnostics.
func (c *Controller[M]) MeanSimulationLength() Result { return c.lastMeanSimLen }

// MoveString renders mv using the domain's HostHooks, for diagnostics.
func (c *Controller[M]) MoveString(mv M) string { return c.hooks.MoveString(mv) }

// ChildStat is a read-only snapshot of one root child, used by pkg/diag
// and by embedders wanting a principal-variation-style display.
type ChildStat[M Move] struct {
	Move   M
	Visits Result
	Value  Result
}

// Children returns a snapshot of every root child's (move, visits,
// value), in allocation order.
func (c *Controller[M]) Children() []ChildStat[M] {
	kids := c.live.children(0)
	out := make([]ChildStat[M], len(kids))
	for i := range kids {
		out[i] = ChildStat[M]{Move: kids[i].Move(), Visits: kids[i].Visits(), Value: kids[i].Value()}
	}
	return out
}

// Search runs one search to completion and returns the chosen move (spec
// §4.2). states holds one per-worker simulation state per thread, each
// already positioned at the current root; the search uses
// min(params.NThreads, len(states)) of them (only one for a very short
// budget). states[0] is used by the controller thread itself, which
// participates as worker 0, so one goroutine fewer is spawned.
func (c *Controller[M]) Search(limits SearchLimits, states []SimulationState[M], excludeMoves []M, timeSource TimeSource) (M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero M
	nuPlayers := c.hooks.NuPlayers()
	rootPlayer := c.hooks.ToPlayAtRoot()

	if limits.MaxCount > 0 {
		limits.MaxTime = math.MaxFloat64
	}

	initVal := make([]Result, nuPlayers)
	for p := range initVal {
		initVal[p] = c.hooks.TieValue()
	}

	isFollowup, seq := c.hooks.CheckFollowup(nil)
	isSame := false
	if isFollowup && len(seq) == 0 {
		isSame = true
		isFollowup = false
	}
	if isSame || (isFollowup && len(seq) <= nuPlayers) {
		for p := 0; p < nuPlayers; p++ {
			if c.rootVal[p].Count() > 0 {
				initVal[p] = c.rootVal[p].Mean()
			}
		}
	}

	var reuseCount Result
	clearTree := true
	reuseCompatible := c.hasLastParams && c.params.ReuseEquivalent(c.lastParams)

	if reuseCompatible && isSame {
		clearTree = false
		if c.live.nuNodes() > 1 {
			c.logger.Info().Int("nodes", int(c.live.nuNodes())).Msg("mcts: reusing entire tree (same root)")
		}
	} else if reuseCompatible && isFollowup {
		timer := newSearchTimer(timeSource)
		abortChecker := newIntervalChecker(timer, 0.1, func() bool { return c.abort.Get() })
		if c.params.Deterministic {
			abortChecker.setDeterministic(1_000_000)
		}
		if idx, found := c.live.findNode(seq); found {
			c.scratch.clear(c.hooks.TieValue())
			aborted := !c.live.extractSubtree(c.scratch, int32(idx), abortChecker.check)
			reuseCount = c.scratch.root().Visits()
			// Value only: the reused root's count carries forward as real
			// search effort already spent at this position (spec §4.2 step
			// 1), it must not be wiped alongside the value.
			c.scratch.root().stats.ClearValue(c.hooks.TieValue())
			if aborted && !limits.AlwaysSearch {
				return zero, ErrReuseAborted
			}
			before, after := c.live.nuNodes(), c.scratch.nuNodes()
			if before > 1 && after > 1 {
				c.live.swap(c.scratch)
				clearTree = false
				c.logger.Info().
					Int("nodes", int(after)).
					Float64("fraction", float64(after)/float64(before)).
					Msg("mcts: reused subtree")
			}
		}
	}

	if clearTree {
		c.live.clear(c.hooks.TieValue())
	}

	c.hasLastParams = true
	c.lastParams = c.params

	for p := range c.rootVal {
		c.rootVal[p].Clear(c.hooks.TieValue())
	}
	if c.params.ReplyHeuristic && !isFollowup {
		c.lgr.init(nuPlayers)
	}

	nThreads := c.params.NThreads
	if nThreads < 1 {
		nThreads = 1
	}
	if nThreads > len(states) {
		nThreads = len(states)
	}
	if limits.MaxTime < 0.5 ||
		(limits.MaxCount > 0 && (limits.MaxCount-reuseCount)/assumedSimsPerSecond < 0.5) {
		c.logger.Debug().Msg("mcts: forcing single-threaded search for very short budget")
		nThreads = 1
	}

	for _, st := range states[:nThreads] {
		st.StartSearch()
	}

	c.nuSimulations.Store(0)
	pruneMinCount := c.params.PruneStartCount
	var outOfMemory bool

	for {
		outOfMemory = c.runWorkers(limits, states[:nThreads], rootPlayer, initVal, timeSource)
		if !outOfMemory {
			break
		}
		if !c.params.PruneEnabled {
			c.logger.Warn().Msg("mcts: arena exhausted, pruning disabled")
			break
		}
		newMin, ok := c.prune(pruneMinCount, timeSource, limits.MaxTime)
		if !ok {
			c.logger.Warn().Msg("mcts: pruning aborted, stopping search")
			break
		}
		pruneMinCount = newMin
	}
	c.logger.Debug().Float64("mean_sim_len", float64(c.lastMeanSimLen)).Msg("mcts: simulation length stats")

	child, _, found := c.selectFinal(excludeMoves)
	if !found {
		c.lastHadMove = false
		if outOfMemory {
			return zero, ErrOutOfMemory
		}
		return zero, ErrNoMove
	}

	c.lastMove = child.Move()
	c.lastHadMove = true
	if outOfMemory {
		return c.lastMove, ErrOutOfMemory
	}
	return c.lastMove, nil
}

// runWorkers launches nThreads-1 goroutines plus the controller thread
// itself (worker 0) and waits for all of them to finish one round of
// simulation (spec §5: the controller thread participates as worker 0).
// Returns true if any worker observed an arena allocation failure.
func (c *Controller[M]) runWorkers(limits SearchLimits, states []SimulationState[M], rootPlayer Player, initVal []Result, timeSource TimeSource) bool {
	nThreads := len(states)
	oom := make([]bool, nThreads)

	var wg sync.WaitGroup
	for id := 1; id < nThreads; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			oom[id] = c.searchLoop(id, limits, states[id], rootPlayer, initVal, timeSource)
		}(id)
	}
	oom[0] = c.searchLoop(0, limits, states[0], rootPlayer, initVal, timeSource)
	wg.Wait()

	for _, v := range oom {
		if v {
			return true
		}
	}
	return false
}

// searchLoop is the per-thread loop of spec §4.3/§5: repeatedly run one
// simulation iteration until an abort condition fires. Only thread 0
// invokes the progress callback. Every thread checks the count budget
// and the cooperative abort flag on each iteration, and evaluates the
// expensive time / saturation / "cannot change" predicate through its
// own interval checker.
func (c *Controller[M]) searchLoop(threadID int, limits SearchLimits, state SimulationState[M], rootPlayer Player, initVal []Result, timeSource TimeSource) bool {
	w := newWorker[M](threadID, c.live, state, c.hooks, c.params, c.lgr)

	timer := newSearchTimer(timeSource)
	timeInterval := 0.1
	if limits.MaxCount == 0 && limits.MaxTime < 1 {
		timeInterval = 0.1 * limits.MaxTime
	}

	lastCallback := 0.0
	expensive := func() bool {
		elapsed := timer.elapsed()
		if threadID == 0 && c.callback != nil && elapsed-lastCallback >= 0.1 {
			lastCallback = elapsed
			c.callback(
				time.Duration(elapsed*float64(time.Second)),
				c.estimateRemaining(limits, elapsed),
			)
		}
		if limits.MaxCount == 0 && elapsed >= limits.MaxTime {
			return true
		}
		if c.live.root().Visits() >= maxExactCount*0.99 {
			c.logger.Warn().Msg("mcts: root visit count near saturation, stopping search")
			return true
		}
		return c.cannotChange(limits, elapsed)
	}
	checker := newIntervalChecker(timer, timeInterval, expensive)
	if c.params.Deterministic {
		checker.setDeterministic(max(1, uint64(assumedSimsPerSecond/5)))
	}

	for {
		simIndex := c.nuSimulations.Add(1) - 1
		rootCount := c.live.root().Visits()

		if limits.MaxCount > 0 && Result(simIndex) >= limits.MaxCount {
			break
		}
		if c.abort.Get() {
			break
		}
		if rootCount > 0 && Result(simIndex) > limits.MinSimulations && checker.check() {
			break
		}

		if w.runIteration(0, simIndex, rootPlayer, initVal) {
			return true
		}
	}
	if threadID == 0 {
		c.lastMeanSimLen = w.MeanSimulationLength()
	}
	return false
}

// cannotChange implements spec §4.2 step 5: given the root's top child
// count m1, second-highest m2 and an estimate of remaining simulations
// r, the best child cannot change once m1 > m2 + r.
func (c *Controller[M]) cannotChange(limits SearchLimits, elapsed float64) bool {
	kids := c.live.children(0)
	if len(kids) < 2 {
		return false
	}
	var m1, m2 Result
	for i := range kids {
		v := kids[i].Visits()
		if v > m1 {
			m2 = m1
			m1 = v
		} else if v > m2 {
			m2 = v
		}
	}

	var remaining Result
	if limits.MaxCount > 0 {
		remaining = limits.MaxCount - Result(c.nuSimulations.Load())
	} else {
		rate := Result(c.nuSimulations.Load()) / math.Max(elapsed, 1e-6)
		remaining = Result(math.Max(limits.MaxTime-elapsed, 0)) * rate
	}
	if remaining < 0 {
		remaining = 0
	}
	return m1 > m2+remaining
}

func (c *Controller[M]) estimateRemaining(limits SearchLimits, elapsed float64) time.Duration {
	if limits.MaxCount == 0 {
		remaining := limits.MaxTime - elapsed
		if remaining < 0 {
			remaining = 0
		}
		return time.Duration(remaining * float64(time.Second))
	}
	rate := Result(c.nuSimulations.Load()) / math.Max(elapsed, 1e-6)
	if rate <= 0 {
		return 0
	}
	remainingSims := limits.MaxCount - Result(c.nuSimulations.Load())
	if remainingSims < 0 {
		remainingSims = 0
	}
	return time.Duration(float64(remainingSims/rate) * float64(time.Second))
}

// prune implements spec §4.2 step 6: copy into the scratch arena only
// descendants with count >= pruneMinCount, swap it in, and adapt the
// threshold for the next cycle based on the retained fraction.
func (c *Controller[M]) prune(pruneMinCount Result, timeSource TimeSource, maxTime float64) (Result, bool) {
	timer := newSearchTimer(timeSource)
	abortFn := func() bool { return c.abort.Get() || timer.elapsed() >= maxTime }

	c.scratch.clear(c.live.root().Value())
	if !c.live.copySubtree(c.scratch, 0, 0, pruneMinCount, abortFn) {
		return pruneMinCount, false
	}

	before, after := c.live.nuNodes(), c.scratch.nuNodes()
	c.live.swap(c.scratch)
	c.logger.Info().
		Int("nodes", int(after)).
		Int("percent", int(int64(after)*100/int64(before))).
		Msg("mcts: pruned tree")

	if int64(after)*100 > int64(before)*50 {
		if pruneMinCount >= maxExactCount/2 {
			return pruneMinCount, false
		}
		return pruneMinCount * 2, true
	}
	return pruneMinCount, true
}

// selectFinal implements spec §4.2 step 7: highest visit count wins,
// ties broken by higher value, earliest-allocated child wins a full tie.
func (c *Controller[M]) selectFinal(exclude []M) (*node[M], int32, bool) {
	kids := c.live.children(0)
	if len(kids) == 0 {
		return nil, 0, false
	}
	first, _ := c.live.root().childRange()

	bestI := int32(-1)
	var bestVisits, bestValue Result
	for i := range kids {
		if containsMove(exclude, kids[i].move) {
			continue
		}
		v := kids[i].Visits()
		if bestI == -1 || v > bestVisits || (v == bestVisits && kids[i].Value() > bestValue) {
			bestI = int32(i)
			bestVisits = v
			bestValue = kids[i].Value()
		}
	}
	if bestI == -1 {
		return nil, 0, false
	}
	return &kids[bestI], first + bestI, true
}

func containsMove[M Move](haystack []M, mv M) bool {
	for _, m := range haystack {
		if m == mv {
			return true
		}
	}
	return false
}
