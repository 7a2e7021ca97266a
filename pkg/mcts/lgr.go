package mcts

import "sync"

// replyKey identifies a 2-ply reply slot: the opponent's last move and
// the mover's own second-to-last move (spec §3).
type replyKey[M Move] struct {
	last       M
	secondLast M
}

// lastGoodReply is the per-player Last-Good-Reply table (spec §3, §4.3):
// for each player, a 1-ply table keyed on the immediately preceding move
// and a 2-ply table keyed on the last two moves, each holding a single
// candidate reply. Every operation takes one narrow mutex (a sync.Map
// per player would still serialize on bucket contention, so this is a
// plain map guarded by the mutex -- the table is heuristic and tolerates losing a race
// to a concurrent store/forget, it must simply never panic or corrupt
// its own bookkeeping).
//
// Update semantics (spec §3, resolved as an Open Question in DESIGN.md):
// store() unconditionally overwrites the slot for a winning reply;
// forget() clears the slot only if it currently holds exactly the
// losing move being forgotten, so an unrelated earlier win is not
// clobbered by a later, unrelated loss.
type lastGoodReply[M Move] struct {
	mu      sync.Mutex
	nullMv  M
	reply1  []map[M]M
	reply2  []map[replyKey[M]]M
}

func newLastGoodReply[M Move](nullMove M) *lastGoodReply[M] {
	return &lastGoodReply[M]{nullMv: nullMove}
}

// init (re)allocates empty tables for nuPlayers players, discarding any
// previous content. Called when a search is not a follow-up of the
// previous one (the heuristic's memory is no longer trustworthy).
func (l *lastGoodReply[M]) init(nuPlayers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reply1 = make([]map[M]M, nuPlayers)
	l.reply2 = make([]map[replyKey[M]]M, nuPlayers)
	for i := range l.reply1 {
		l.reply1[i] = make(map[M]M)
		l.reply2[i] = make(map[replyKey[M]]M)
	}
}

func (l *lastGoodReply[M]) ensure(player Player) {
	for int(player) >= len(l.reply1) {
		l.reply1 = append(l.reply1, make(map[M]M))
		l.reply2 = append(l.reply2, make(map[replyKey[M]]M))
	}
}

func (l *lastGoodReply[M]) store(player Player, m1, m2, reply M) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensure(player)
	l.reply1[player][m1] = reply
	if m2 != l.nullMv {
		l.reply2[player][replyKey[M]{m1, m2}] = reply
	}
}

func (l *lastGoodReply[M]) forget(player Player, m1, m2, mv M) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensure(player)
	if cur, ok := l.reply1[player][m1]; ok && cur == mv {
		delete(l.reply1[player], m1)
	}
	if m2 != l.nullMv {
		key := replyKey[M]{m1, m2}
		if cur, ok := l.reply2[player][key]; ok && cur == mv {
			delete(l.reply2[player], key)
		}
	}
}

// lookup returns the 1-ply and 2-ply candidate replies for player to
// respond to (last, secondLast), or the null move where none is known.
// These feed SimulationState.GenAndPlayPlayoutMove as playout move bias.
func (l *lastGoodReply[M]) lookup(player Player, last, secondLast M) (r1, r2 M) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r1, r2 = l.nullMv, l.nullMv
	if int(player) >= len(l.reply1) {
		return
	}
	if v, ok := l.reply1[player][last]; ok {
		r1 = v
	}
	if secondLast != l.nullMv {
		if v, ok := l.reply2[player][replyKey[M]{last, secondLast}]; ok {
			r2 = v
		}
	}
	return
}
