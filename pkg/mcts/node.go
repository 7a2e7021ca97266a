package mcts

import "sync/atomic"

// NodeIndex is the compact integer type used to address nodes within an
// arena, sized generously enough for any memory budget a process could
// realistically dedicate to a single search tree.
type NodeIndex int32

// NoIndex marks the absence of a node reference (e.g. find_node misses).
const NoIndex NodeIndex = -1

// Node flags, mirroring the teacher's CAS-guarded expansion protocol
// (pkg/mcts/node.go in the source repo) adapted from a pointer-node to
// an arena-slot model: the flag word guards *who* gets to allocate this
// node's children, while the separate, atomically-published child-count
// field (see arena.go) is what other threads actually synchronize on to
// see the children themselves.
const (
	flagCanExpand uint32 = 0
	flagExpanding uint32 = 1
	flagExpanded  uint32 = 2
	flagTerminal  uint32 = 4
)

// node is one slot of the arena. move is the move leading into this
// node (the zero value at the root). stats.Count() doubles as the
// node's visit count and stats.Mean() as its running value, matching
// spec §3 ("a visit count ...; a value (running mean)"); keeping them in
// one DirtyStat means the selection rule's "child.count" and
// "child.value" terms always come from the same statistic.
type node[M Move] struct {
	move M

	stats DirtyStat // visit count + value, from the perspective of the player to move at this node's parent
	rave  DirtyStat // RAVE weight-sum + RAVE value

	initHint Result // domain-provided prior, written once before publication

	firstChild  atomic.Int32 // index of the first child, valid once numChildren > 0
	numChildren atomic.Int32 // publication atomic: 0 until children are fully written

	flags atomic.Uint32
}

func (n *node[M]) reset(move M, initHint Result) {
	n.move = move
	n.initHint = initHint
	n.stats.Clear(initHint)
	n.rave.Clear(0)
	n.firstChild.Store(0)
	n.numChildren.Store(0)
	n.flags.Store(flagCanExpand)
}

// hasChildren reports whether this node's children have been published.
// The acquire-equivalent load on numChildren is the one synchronization
// point that makes the arena safe under concurrent expand/read (spec
// §5): observing a non-zero count here guarantees every slot in
// [firstChild, firstChild+numChildren) was fully initialized before this
// load could return that value, because expand() writes all child slots
// before storing numChildren.
func (n *node[M]) hasChildren() bool {
	return n.numChildren.Load() > 0
}

func (n *node[M]) childRange() (first, count int32) {
	count = n.numChildren.Load()
	if count == 0 {
		return 0, 0
	}
	return n.firstChild.Load(), count
}

func (n *node[M]) Terminal() bool {
	return n.flags.Load()&flagTerminal == flagTerminal
}

func (n *node[M]) SetTerminal() {
	n.flags.Store(flagTerminal)
}

func (n *node[M]) Expanded() bool {
	return n.flags.Load()&flagExpanded == flagExpanded
}

func (n *node[M]) Expanding() bool {
	return n.flags.Load()&flagExpanding == flagExpanding
}

// tryBeginExpand attempts to transition this node from "can expand" to
// "expanding"; only one caller among any number of racing workers
// succeeds, the rest observe Expanding() == true and must wait.
func (n *node[M]) tryBeginExpand() bool {
	return n.flags.CompareAndSwap(flagCanExpand, flagExpanding)
}

func (n *node[M]) finishExpand() {
	n.flags.Store(flagExpanded)
}

// abandonExpand reverts a failed expansion attempt (out of memory) back
// to CanExpand, so a future search (after pruning) may retry it.
func (n *node[M]) abandonExpand() {
	n.flags.Store(flagCanExpand)
}

// Move returns the move leading into this node.
func (n *node[M]) Move() M { return n.move }

// Visits returns the node's visit count.
func (n *node[M]) Visits() Result { return n.stats.Count() }

// Value returns the node's running value, from the perspective of the
// player to move at its parent.
func (n *node[M]) Value() Result { return n.stats.Mean() }
