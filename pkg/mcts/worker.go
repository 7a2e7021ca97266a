package mcts

import (
	"math"
	"runtime"
)

// simulationRecord is the per-worker, reused-across-iterations buffer of
// spec §3: the ordered sequence of nodes visited from root to leaf. The
// per-player first-play scratch arrays used for RAVE live alongside it.
type simulationRecord[M Move] struct {
	nodes     []int32 // arena indices, root to leaf
	firstPlay [][]int32
}

func newSimulationRecord[M Move](nuPlayers int, moveRange int32) *simulationRecord[M] {
	s := &simulationRecord[M]{
		nodes:     make([]int32, 0, 64),
		firstPlay: make([][]int32, nuPlayers),
	}
	for p := range s.firstPlay {
		s.firstPlay[p] = make([]int32, moveRange)
		for i := range s.firstPlay[p] {
			s.firstPlay[p][i] = -1
		}
	}
	return s
}

// worker runs simulation iterations against a single shared arena. Each
// worker owns its own SimulationState instance; the arena, params and
// Last-Good-Reply table are shared and accessed only through the
// lock-free / internally-synchronized operations they expose.
type worker[M Move] struct {
	id      int
	tree    *arena[M]
	ops     SimulationState[M]
	hooks   HostHooks[M]
	params  Params
	lgr     *lastGoodReply[M]
	sim     *simulationRecord[M]
	oom     bool

	// simLen is a per-worker, single-threaded accumulator of the total
	// move count (in-tree selection plus playout) of each iteration;
	// never touched by another goroutine, so it uses StrictStat rather
	// than the dirty-lock-free DirtyStat the shared tree statistics need.
	simLen StrictStat
}

func newWorker[M Move](id int, tree *arena[M], ops SimulationState[M], hooks HostHooks[M], params Params, lgr *lastGoodReply[M]) *worker[M] {
	return &worker[M]{
		id:     id,
		tree:   tree,
		ops:    ops,
		hooks:  hooks,
		params: params,
		lgr:    lgr,
		sim:    newSimulationRecord[M](hooks.NuPlayers(), hooks.MoveRange()),
	}
}

// selectChild implements spec §4.3 Selection: choose the child
// maximizing beta*rave + (1-beta)*value + bias, first-encountered wins
// ties. An unvisited child has an infinite bias term and is therefore
// always chosen immediately, which is itself a first-encountered tie
// among any other unvisited siblings.
func (w *worker[M]) selectChild(parentIdx int32) int32 {
	parent := w.tree.at(parentIdx)
	first, count := parent.childRange()
	lnN := lnVisits(parent.Visits())

	var beta float64
	if w.params.RaveEnabled {
		n := parent.Visits()
		beta = math.Sqrt(w.params.RaveEquivalence / (3*n + w.params.RaveEquivalence))
	}

	bestScore := math.Inf(-1)
	bestI := int32(0)
	for i := int32(0); i < count; i++ {
		c := w.tree.at(first + i)
		score := beta*c.rave.Mean() + (1-beta)*c.Value() + biasTerm(lnN, c.Visits(), w.params.UCTConstant)
		if score > bestScore {
			bestScore = score
			bestI = i
		}
	}
	return first + bestI
}

// bestNewChild returns the index (within [first, first+count)) of the
// new child with the highest initial value, used right after expansion
// (spec §4.3 Expansion: "pick the best child among the new ones (by
// initial value) and descend one more step").
func (w *worker[M]) bestNewChild(first, count int32) int32 {
	bestI := int32(0)
	bestV := w.tree.at(first).Value()
	for i := int32(1); i < count; i++ {
		v := w.tree.at(first + i).Value()
		if v > bestV {
			bestV = v
			bestI = i
		}
	}
	return first + bestI
}

// runIteration performs one full MCTS iteration: selection, expansion,
// playout, evaluation and backup. rootIdx is the root's arena index; a
// leaf at rootIdx is expanded regardless of the expand threshold.
// initVal is the per-player initial-value estimate used to
// bias prior-knowledge generation for newly expanded children (spec
// §4.2 step 2, §4.3 Expansion). Returns true if this worker observed an
// arena allocation failure (caller should stop all workers).
func (w *worker[M]) runIteration(rootIdx int32, simIndex uint64, rootPlayer Player, initVal []Result) bool {
	ops := w.ops
	ops.StartSimulation(simIndex)

	sim := w.sim
	sim.nodes = sim.nodes[:0]
	sim.nodes = append(sim.nodes, rootIdx)

	cur := rootIdx
	for w.tree.at(cur).hasChildren() {
		childIdx := w.selectChild(cur)
		ops.PlayInTree(w.tree.at(childIdx).move)
		sim.nodes = append(sim.nodes, childIdx)
		cur = childIdx
	}

	leaf := w.tree.at(cur)
	isTerminal := leaf.Terminal()

	if !isTerminal && (cur == rootIdx || leaf.Visits() > w.params.ExpandThreshold) {
		if leaf.tryBeginExpand() {
			toMove := ops.GetToPlay()
			children := ops.GenChildren(initVal)
			if len(children) == 0 {
				leaf.SetTerminal()
				isTerminal = true
			} else if err := w.tree.expand(leaf, children, initVal[toMove]); err != nil {
				leaf.abandonExpand()
				return true
			} else {
				leaf.finishExpand()
			}
		} else {
			for leaf.Expanding() {
				runtime.Gosched()
			}
		}

		if leaf.Expanded() {
			first, count := leaf.childRange()
			childIdx := w.bestNewChild(first, count)
			ops.PlayExpandedChild(w.tree.at(childIdx).move)
			sim.nodes = append(sim.nodes, childIdx)
			cur = childIdx
		}
	}

	ops.FinishInTree()

	var eval []Result
	if isTerminal {
		eval = ops.EvaluateTerminal()
	} else {
		ops.StartPlayout()
		nullMv := w.hooks.NullMove()
		for {
			reply1, reply2 := nullMv, nullMv
			if w.params.ReplyHeuristic {
				toPlay := ops.GetToPlay()
				nm := ops.GetNuMoves()
				var last, secondLast M = nullMv, nullMv
				if nm >= 1 {
					_, last = ops.GetMove(nm - 1)
				}
				if nm >= 2 {
					_, secondLast = ops.GetMove(nm - 2)
				}
				reply1, reply2 = w.lgr.lookup(toPlay, last, secondLast)
			}
			if !ops.GenAndPlayPlayoutMove(reply1, reply2) {
				break
			}
		}
		eval = ops.EvaluatePlayout()
	}

	w.backup(sim, rootPlayer, eval)
	if w.params.ReplyHeuristic {
		w.updateLastGoodReply(eval)
	}
	w.simLen.Add(Result(w.ops.GetNuMoves()))
	return false
}

// MeanSimulationLength returns the running mean of this worker's total
// move count per iteration (in-tree selection plus playout), a
// diagnostic exposed to the controller for logging only.
func (w *worker[M]) MeanSimulationLength() Result { return w.simLen.Mean() }

// backup walks the visited-node path and adds, to each node, the
// evaluation of the player who was to move at its parent (spec §4.3
// Backup). RAVE statistics are updated separately by updateRave.
func (w *worker[M]) backup(sim *simulationRecord[M], rootPlayer Player, eval []Result) {
	w.tree.addValue(w.tree.at(sim.nodes[0]), eval[rootPlayer])
	for i := 1; i < len(sim.nodes); i++ {
		player, _ := w.ops.GetMove(i - 1)
		w.tree.addValue(w.tree.at(sim.nodes[i]), eval[player])
	}
	if w.params.RaveEnabled {
		w.updateRave(sim, eval)
	}
}

// updateRave implements spec §4.3's RAVE backup and resolves the open
// "rave_check_same" question per spec §9: a child move m for player p at
// node index i is skipped if any other player's first play of m falls in
// [i, firstPlay[p][m]].
func (w *worker[M]) updateRave(sim *simulationRecord[M], eval []Result) {
	nuMoves := w.ops.GetNuMoves()
	if nuMoves == 0 {
		return
	}
	firstPlay := w.sim.firstPlay
	nuNodes := len(sim.nodes)

	i := nuMoves - 1
	for i >= nuNodes {
		player, mv := w.ops.GetMove(i)
		if !w.ops.SkipRave(mv) {
			firstPlay[player][mv.ToInt()] = int32(i)
		}
		i--
	}
	for {
		player, mv := w.ops.GetMove(i)
		if !w.ops.SkipRave(mv) {
			firstPlay[player][mv.ToInt()] = int32(i)
		}
		w.updateRaveAt(sim, player, eval, i, nuMoves)
		if i == 0 {
			break
		}
		i--
	}

	for j := 0; j < nuMoves; j++ {
		player, mv := w.ops.GetMove(j)
		firstPlay[player][mv.ToInt()] = -1
	}
}

func (w *worker[M]) updateRaveAt(sim *simulationRecord[M], player Player, eval []Result, i, simLen int) {
	nodeIdx := sim.nodes[i]
	node := w.tree.at(nodeIdx)
	first, count := node.childRange()
	if count == 0 {
		return
	}
	firstPlay := w.sim.firstPlay
	weightFactor := 1.0 / float64(simLen-i)
	nuPlayers := len(firstPlay)

	for k := int32(0); k < count; k++ {
		child := w.tree.at(first + k)
		m := child.move.ToInt()
		firstOccurrence := firstPlay[player][m]
		if firstOccurrence == -1 {
			continue
		}
		if w.params.RaveCheckSame {
			otherPlayedSame := false
			for p := 0; p < nuPlayers; p++ {
				if int32(p) == player {
					continue
				}
				fo := firstPlay[p][m]
				if fo != -1 && fo >= int32(i) && fo <= firstOccurrence {
					otherPlayedSame = true
					break
				}
			}
			if otherPlayedSame {
				continue
			}
		}
		var weight Result
		if w.params.WeightRaveUpdates {
			weight = 2 - Result(firstOccurrence-int32(i))*weightFactor
		} else {
			weight = 1
		}
		w.tree.addRaveValue(child, eval[player], weight)
	}
}

// updateLastGoodReply implements spec §4.3's reply-table update: iterate
// the visited moves from end to start; a winning player's reply to
// (m1, m2) is stored, a losing player's is forgotten.
func (w *worker[M]) updateLastGoodReply(eval []Result) {
	nuMoves := w.ops.GetNuMoves()
	if nuMoves <= 1 {
		return
	}
	maxEval := eval[0]
	for _, e := range eval[1:] {
		if e > maxEval {
			maxEval = e
		}
	}
	nullMv := w.hooks.NullMove()
	for i := nuMoves - 1; i > 0; i-- {
		player, mv := w.ops.GetMove(i)
		_, m1 := w.ops.GetMove(i - 1)
		m2 := nullMv
		if i >= 2 {
			_, m2 = w.ops.GetMove(i - 2)
		}
		if eval[player] == maxEval {
			w.lgr.store(player, m1, m2, mv)
		} else {
			w.lgr.forget(player, m1, m2, mv)
		}
	}
}
