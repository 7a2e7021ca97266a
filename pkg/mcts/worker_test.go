package mcts

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeOps is a minimal SimulationState stand-in that only implements the
// methods worker.go's backup/RAVE/LGR paths actually call; selectChild
// and expansion are exercised directly against the arena instead.
type fakeOps struct {
	moves []fakePly
}

type fakePly struct {
	player Player
	move   testMove
}

func (f *fakeOps) StartSearch()               {}
func (f *fakeOps) StartSimulation(uint64)      {}
func (f *fakeOps) StartPlayout()               {}
func (f *fakeOps) PlayInTree(testMove)         {}
func (f *fakeOps) FinishInTree()               {}
func (f *fakeOps) PlayExpandedChild(testMove)  {}
func (f *fakeOps) GenAndPlayPlayoutMove(_, _ testMove) bool { return false }
func (f *fakeOps) EvaluatePlayout() []Result   { return nil }
func (f *fakeOps) EvaluateTerminal() []Result  { return nil }
func (f *fakeOps) SkipRave(mv testMove) bool   { return mv == nullTestMove }
func (f *fakeOps) Dump(io.Writer)              {}
func (f *fakeOps) GenChildren(_ []Result) []ChildDescriptor[testMove] { return nil }

func (f *fakeOps) GetNuMoves() int { return len(f.moves) }
func (f *fakeOps) GetMove(i int) (Player, testMove) {
	return f.moves[i].player, f.moves[i].move
}
func (f *fakeOps) GetToPlay() Player { return 0 }

// selectChild picks the child with the strictly highest score; the
// first child encountered wins any tie, including the "always infinite"
// tie among multiple unvisited children.
func TestWorkerSelectChildPrefersHigherScoreFirstOnTie(t *testing.T) {
	a := newArena[testMove](16)
	a.clear(0.5)
	require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 0}, {Move: 1}, {Move: 2}}, 0.5))

	params := DefaultParams()
	params.RaveEnabled = false
	w := &worker[testMove]{tree: a, params: params}

	// All three children unvisited: every bias term is +Inf, so the
	// first-encountered child (index 0) must win.
	require.Equal(t, int32(1), w.selectChild(0))

	// Give child 1 (arena index 2) one visit so its bias term becomes
	// finite; children 0 and 2 remain unvisited and tie at +Inf, so the
	// first of those (index 0, arena index 1) must still win.
	a.addValue(a.at(2), 1.0)
	require.Equal(t, int32(1), w.selectChild(0))
}

// backup adds, to each visited node, the evaluation of whichever player
// was to move at that node's parent -- the root gets the player to move
// at the root, every other node gets the mover who played into it.
func TestWorkerBackupAddsCorrectPlayerEvaluation(t *testing.T) {
	a := newArena[testMove](16)
	a.clear(0.5)
	require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 0}}, 0.5))
	childIdx := int32(1)

	params := DefaultParams()
	params.RaveEnabled = false
	ops := &fakeOps{moves: []fakePly{{player: 0, move: testMove(0)}}}
	w := &worker[testMove]{tree: a, params: params, ops: ops}

	sim := &simulationRecord[testMove]{nodes: []int32{0, childIdx}}
	eval := []Result{0.9, 0.1}

	beforeRootVisits := a.root().Visits()
	beforeChildVisits := a.at(childIdx).Visits()

	w.backup(sim, 0, eval)

	require.Equal(t, beforeRootVisits+1, a.root().Visits())
	require.Equal(t, beforeChildVisits+1, a.at(childIdx).Visits())
	require.InDelta(t, eval[0], a.root().Value(), 1e-9)
	require.InDelta(t, eval[0], a.at(childIdx).Value(), 1e-9)
}

// MeanSimulationLength accumulates the total per-iteration move count
// across calls, independent of which goroutine the worker runs on (it is
// only ever touched by its own owning goroutine).
func TestWorkerMeanSimulationLengthAccumulates(t *testing.T) {
	w := &worker[testMove]{}
	w.simLen.Add(4)
	w.simLen.Add(6)
	require.InDelta(t, 5.0, w.MeanSimulationLength(), 1e-9)
}
