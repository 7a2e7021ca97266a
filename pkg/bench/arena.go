// Package bench runs series of games between two Controller
// configurations and tallies the results, generalizing the teacher's
// two-player versus-arena harness (pkg/bench/versus_arena.go in the
// source repo) from a single fixed MCTS type to any SimulationState +
// HostHooks pairing over toygame.State.
package bench

import (
	"sync"
	"sync/atomic"

	"github.com/polyomcts/mcts-core/internal/toygame"
	"github.com/polyomcts/mcts-core/pkg/mcts"
)

// Stats tallies a series of two-player games, matching the teacher's
// VersusArenaStats counters.
type Stats struct {
	wins0, wins1, draws atomic.Uint32
}

func (s *Stats) Wins0() int { return int(s.wins0.Load()) }
func (s *Stats) Wins1() int { return int(s.wins1.Load()) }
func (s *Stats) Draws() int { return int(s.draws.Load()) }
func (s *Stats) Total() int { return s.Wins0() + s.Wins1() + s.Draws() }

func (s *Stats) record(result []float64) {
	switch {
	case result[0] > result[1]:
		s.wins0.Add(1)
	case result[1] > result[0]:
		s.wins1.Add(1)
	default:
		s.draws.Add(1)
	}
}

// Config is one side's search configuration for an Arena match.
type Config struct {
	Params mcts.Params
	Limits mcts.SearchLimits
}

// Arena plays a fixed-size 2-player toygame.State repeatedly, alternating
// which config moves first, distributing games over NThreads goroutines
// (spec §9's RAVE-vs-UCT-only comparison property, S5).
type Arena struct {
	Stats
	Width, Height int
	NGames        int
	NThreads      int
	Configs       [2]Config
}

// NewArena returns an Arena with the teacher's defaults of 100 games
// across 2 worker goroutines.
func NewArena(width, height int, c0, c1 Config) *Arena {
	return &Arena{
		Width: width, Height: height,
		NGames: 100, NThreads: 2,
		Configs: [2]Config{c0, c1},
	}
}

// Run plays NGames sequential games, split across NThreads goroutines,
// and returns the final Stats. Game index parity decides which config
// plays player 0, so a systematic first-move advantage doesn't bias the
// comparison.
func (a *Arena) Run() *Stats {
	nThreads := a.NThreads
	if nThreads < 1 {
		nThreads = 1
	}
	var nextGame atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < nThreads; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				g := nextGame.Add(1) - 1
				if g >= int64(a.NGames) {
					return
				}
				a.playOneGame(workerID, g)
			}
		}(w)
	}
	wg.Wait()
	return &a.Stats
}

func (a *Arena) playOneGame(workerID int, gameIndex int64) {
	swap := gameIndex%2 == 1
	cfg0, cfg1 := a.Configs[0], a.Configs[1]
	if swap {
		cfg0, cfg1 = cfg1, cfg0
	}

	state := toygame.New(a.Width, a.Height, 2, int64(workerID)*1_000_003+gameIndex)
	ctrl0 := mcts.NewController[toygame.Move](state, cfg0.Params)
	ctrl1 := mcts.NewController[toygame.Move](state, cfg1.Params)

	for {
		if len(state.GenChildren(nil)) == 0 {
			break
		}
		ctrl := ctrl0
		limits := cfg0.Limits
		if state.ToPlay() == 1 {
			ctrl = ctrl1
			limits = cfg1.Limits
		}

		state.StartSearch()
		mv, err := ctrl.Search(limits, []mcts.SimulationState[toygame.Move]{state}, nil, mcts.WallClockTimeSource{})
		if err != nil {
			break
		}
		state.Play(mv)
	}

	result := state.EvaluatePlayout()
	if swap {
		result[0], result[1] = result[1], result[0]
	}
	a.Stats.record(result)
}
