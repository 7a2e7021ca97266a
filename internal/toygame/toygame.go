// Package toygame implements a tiny n-player cell-claiming game used to
// exercise pkg/mcts end to end. It is not a polyomino placement game
// itself: it generalizes the shape of one (players alternately claim
// cells on a grid until none remain, scored by cell count) down to a
// size small enough to run exhaustively in tests.
package toygame

import (
	"fmt"
	"io"

	"golang.org/x/exp/rand"

	"github.com/polyomcts/mcts-core/pkg/mcts"
)

// Move is a claimed cell index, or NullMove before any move has been
// played.
type Move int32

const NullMove Move = -1

func (m Move) ToInt() int32 { return int32(m) }

// State is one instance of the game, owned by a single search worker.
// Root is a snapshot of the board at the moment StartSearch was called;
// StartSimulation restores it cheaply on every iteration instead of
// maintaining an undo-move stack, which the grid's tiny size makes
// simpler than the incremental-undo approach a larger board would need.
type State struct {
	width, height int
	nuPlayers     int

	owner []int8 // -1 empty, else player index
	toPlay int32
	played []playedMove

	root struct {
		owner  []int8
		toPlay int32
	}

	rng *rand.Rand
}

type playedMove struct {
	player int32
	move   Move
}

// New creates a width*height board for nuPlayers, all cells empty,
// player 0 to move first.
func New(width, height, nuPlayers int, seed int64) *State {
	s := &State{
		width:     width,
		height:    height,
		nuPlayers: nuPlayers,
		owner:     make([]int8, width*height),
		rng:       rand.New(rand.NewSource(uint64(seed))),
	}
	for i := range s.owner {
		s.owner[i] = -1
	}
	return s
}

func (s *State) MoveRange() int32 { return int32(s.width * s.height) }
func (s *State) NuPlayers() int   { return s.nuPlayers }
func (s *State) TieValue() float64 {
	return 1.0 / float64(s.nuPlayers)
}

// Play commits a move to the live board outside of any search, advancing
// whose turn it is; used by callers to set up the actual game position
// between searches.
func (s *State) Play(mv Move) {
	if s.root.owner != nil {
		// Discard whatever the last search's simulations left on the board.
		copy(s.owner, s.root.owner)
		s.toPlay = s.root.toPlay
	}
	s.owner[mv] = int8(s.toPlay)
	s.toPlay = (s.toPlay + 1) % int32(s.nuPlayers)
	if s.root.owner != nil {
		copy(s.root.owner, s.owner)
		s.root.toPlay = s.toPlay
	}
}

func (s *State) ToPlay() int32 { return s.toPlay }

func (s *State) legalMoves() []Move {
	out := make([]Move, 0, len(s.owner))
	for i, o := range s.owner {
		if o == -1 {
			out = append(out, Move(i))
		}
	}
	return out
}

// StartSearch snapshots the current board as the root of the upcoming
// search.
func (s *State) StartSearch() {
	s.root.owner = append([]int8(nil), s.owner...)
	s.root.toPlay = s.toPlay
	s.played = s.played[:0]
}

// StartSimulation restores the board to the search root.
func (s *State) StartSimulation(uint64) {
	copy(s.owner, s.root.owner)
	s.toPlay = s.root.toPlay
	s.played = s.played[:0]
}

func (s *State) StartPlayout() {}
func (s *State) FinishInTree() {}

func (s *State) PlayInTree(mv Move) {
	s.commit(mv)
}

func (s *State) PlayExpandedChild(mv Move) {
	s.commit(mv)
}

func (s *State) commit(mv Move) {
	s.played = append(s.played, playedMove{player: s.toPlay, move: mv})
	s.owner[mv] = int8(s.toPlay)
	s.toPlay = (s.toPlay + 1) % int32(s.nuPlayers)
}

// GenChildren returns one descriptor per empty cell, with no prior
// knowledge seeding (spec's domain hook for prior-knowledge biasing is
// intentionally left unused by this toy domain).
func (s *State) GenChildren(_ []float64) []mcts.ChildDescriptor[Move] {
	moves := s.legalMoves()
	out := make([]mcts.ChildDescriptor[Move], len(moves))
	for i, mv := range moves {
		out[i] = mcts.ChildDescriptor[Move]{Move: mv}
	}
	return out
}

func (s *State) GenAndPlayPlayoutMove(reply1, reply2 Move) bool {
	moves := s.legalMoves()
	if len(moves) == 0 {
		return false
	}
	for _, candidate := range [2]Move{reply1, reply2} {
		if candidate == NullMove {
			continue
		}
		if s.owner[candidate] == -1 {
			s.commit(candidate)
			return true
		}
	}
	mv := moves[s.rng.Intn(len(moves))]
	s.commit(mv)
	return true
}

// evaluate gives 1 to the player with the most claimed cells and 0 to
// every other player; players tied for the most split 1 equally. A
// generalization of the 2-player win/loss/draw evaluation to n players.
func (s *State) evaluate() []float64 {
	counts := make([]int, s.nuPlayers)
	for _, o := range s.owner {
		if o >= 0 {
			counts[o]++
		}
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	nuWinners := 0
	for _, c := range counts {
		if c == maxCount {
			nuWinners++
		}
	}
	result := make([]float64, s.nuPlayers)
	for p, c := range counts {
		if c == maxCount {
			result[p] = 1.0 / float64(nuWinners)
		}
	}
	return result
}

func (s *State) EvaluatePlayout() []float64  { return s.evaluate() }
func (s *State) EvaluateTerminal() []float64 { return s.evaluate() }

func (s *State) GetNuMoves() int { return len(s.played) }

func (s *State) GetMove(i int) (int32, Move) {
	return s.played[i].player, s.played[i].move
}

func (s *State) GetToPlay() int32 { return s.toPlay }

func (s *State) SkipRave(mv Move) bool { return mv == NullMove }

func (s *State) MoveString(mv Move) string {
	if mv == NullMove {
		return "null"
	}
	return fmt.Sprintf("%c%d", 'a'+int(mv)%s.width, int(mv)/s.width+1)
}

// ToPlayAtRoot returns the player recorded by the last StartSearch call.
func (s *State) ToPlayAtRoot() int32 { return s.root.toPlay }

// NullMove returns the sentinel "no move" value.
func (s *State) NullMove() Move { return NullMove }

// CheckFollowup never reports a follow-up: the toy domain does not track
// move sequences between searches. Generalized host implementations
// (e.g. a real board game embedder) supply their own.
func (s *State) CheckFollowup(seq []Move) (bool, []Move) { return false, seq }

func (s *State) Dump(w io.Writer) {
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			o := s.owner[y*s.width+x]
			if o == -1 {
				fmt.Fprint(w, ". ")
			} else {
				fmt.Fprintf(w, "%d ", o)
			}
		}
		fmt.Fprintln(w)
	}
}
