package mcts

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// raveOps is a scripted fakeOps-alike used only to drive updateRave with
// a known move sequence; it does not implement selection/expansion.
type raveOps struct {
	moves []fakePly
}

func (r *raveOps) StartSearch()                                       {}
func (r *raveOps) StartSimulation(uint64)                              {}
func (r *raveOps) StartPlayout()                                       {}
func (r *raveOps) PlayInTree(testMove)                                 {}
func (r *raveOps) FinishInTree()                                       {}
func (r *raveOps) PlayExpandedChild(testMove)                          {}
func (r *raveOps) GenAndPlayPlayoutMove(_, _ testMove) bool            { return false }
func (r *raveOps) EvaluatePlayout() []Result                           { return nil }
func (r *raveOps) EvaluateTerminal() []Result                          { return nil }
func (r *raveOps) SkipRave(mv testMove) bool                           { return mv == nullTestMove }
func (r *raveOps) Dump(io.Writer)                                      {}
func (r *raveOps) GenChildren(_ []Result) []ChildDescriptor[testMove]  { return nil }
func (r *raveOps) GetNuMoves() int                                     { return len(r.moves) }
func (r *raveOps) GetMove(i int) (Player, testMove)                    { return r.moves[i].player, r.moves[i].move }
func (r *raveOps) GetToPlay() Player                                   { return 0 }

// updateRave's defining AMAF property: a child move that was never
// selected along the in-tree path still receives a RAVE credit if the
// same player plays that move later in the simulation, while a sibling
// whose move never recurs gets none.
func TestUpdateRaveCreditsSiblingsByAllMovesAsFirstPlay(t *testing.T) {
	a := newArena[testMove](16)
	a.clear(0.5)
	// Root children: A(move 0), B(move 1), C(move 2).
	require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 0}, {Move: 1}, {Move: 2}}, 0.5))

	params := DefaultParams()
	params.RaveEnabled = true
	// Uniform weight keeps the expected rave.Count() values exactly 1
	// per credited update, so the assertions below don't need to
	// recompute the linearly-decreasing weight formula by hand.
	params.WeightRaveUpdates = false
	params.RaveCheckSame = false

	ops := &raveOps{moves: []fakePly{
		{player: 0, move: testMove(2)}, // ply 0: player0 plays C's move (the one "taken" from root)
		{player: 1, move: testMove(9)}, // ply 1: unrelated filler move
		{player: 0, move: testMove(0)}, // ply 2: player0 later also plays A's move
	}}

	w := &worker[testMove]{tree: a, params: params, ops: ops, sim: newSimulationRecord[testMove](2, 10)}
	sim := &simulationRecord[testMove]{nodes: []int32{0}} // selection stopped at the root
	eval := []Result{0.8, 0.2}

	w.updateRave(sim, eval)

	kids := a.children(0)
	require.Equal(t, testMove(0), kids[0].Move())
	require.Equal(t, testMove(1), kids[1].Move())
	require.Equal(t, testMove(2), kids[2].Move())

	require.Equal(t, Result(1), kids[0].rave.Count(), "sibling A must receive AMAF credit for its later-played move")
	require.Equal(t, Result(0), kids[1].rave.Count(), "sibling B's move never recurs and must receive no credit")
	require.Equal(t, Result(1), kids[2].rave.Count())
}

// rave_check_same (spec §9): a child move for player p's node is skipped
// if another player's first play of that same move lies between this
// node's ply and p's own (later) first play of it -- the move's AMAF
// value is "shadowed" by the other player having already tried it.
func TestUpdateRaveCheckSameSkipsShadowedMove(t *testing.T) {
	runScenario := func(checkSame bool) Result {
		a := newArena[testMove](16)
		a.clear(0.5)
		require.NoError(t, a.expand(a.root(), []ChildDescriptor[testMove]{{Move: 50}}, 0.5))
		childIdx := int32(1)
		require.NoError(t, a.expand(a.at(childIdx), []ChildDescriptor[testMove]{{Move: 7}, {Move: 8}}, 0.5))

		params := DefaultParams()
		params.RaveEnabled = true
		// Uniform weight, as in the test above: one credited update adds
		// exactly 1 to rave.Count().
		params.WeightRaveUpdates = false
		params.RaveCheckSame = checkSame

		// Player 0 eventually plays move 7 (ply 3); player 1 plays the
		// same move 7 earlier (ply 2), between this node's ply (1) and
		// player 0's own first play of it.
		ops := &raveOps{moves: []fakePly{
			{player: 1, move: testMove(50)},
			{player: 0, move: testMove(20)},
			{player: 1, move: testMove(7)},
			{player: 0, move: testMove(7)},
		}}

		w := &worker[testMove]{tree: a, params: params, ops: ops, sim: newSimulationRecord[testMove](2, 60)}
		sim := &simulationRecord[testMove]{nodes: []int32{0, childIdx}}
		eval := []Result{0.5, 0.5}

		w.updateRave(sim, eval)

		kids := a.children(childIdx)
		require.Equal(t, testMove(7), kids[0].Move())
		return kids[0].rave.Count()
	}

	require.Equal(t, Result(1), runScenario(false), "without check-same, player 0's later play of move 7 still earns AMAF credit")
	require.Equal(t, Result(0), runScenario(true), "with check-same, player 1 having already played move 7 first must shadow the credit")
}
