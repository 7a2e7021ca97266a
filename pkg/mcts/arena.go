package mcts

import "sync/atomic"

// AbortFunc is consulted periodically by long-running arena operations
// (copy_subtree / extract_subtree) so they can be cut short by a time
// budget or the global cancellation flag (spec §4.1, §5).
type AbortFunc func() bool

// arena is the bounded, thread-safe node pool described in spec §3: a
// monotonic allocator hands out contiguous ranges of slots via an atomic
// fetch-add, root is always slot 0, and the tree is acyclic by
// construction (every node's parent is reachable only by descent from
// the root; nothing ever points "up").
type arena[M Move] struct {
	nodes    []node[M]
	next     atomic.Int32
	capacity int32
}

func newArena[M Move](capacity int32) *arena[M] {
	if capacity < 1 {
		capacity = 1
	}
	return &arena[M]{nodes: make([]node[M], capacity), capacity: capacity}
}

// clear resets the arena to just the root, initialized with the given
// tie-value so a freshly expanded root starts from a neutral prior.
func (a *arena[M]) clear(rootInit Result) {
	a.next.Store(1)
	var zero M
	a.nodes[0].reset(zero, rootInit)
}

func (a *arena[M]) root() *node[M] { return &a.nodes[0] }

func (a *arena[M]) at(idx int32) *node[M] { return &a.nodes[idx] }

func (a *arena[M]) nuNodes() int32 { return a.next.Load() }

// alloc reserves k contiguous slots via an atomic fetch-add, failing
// without mutating any node if the reservation would overflow the
// capacity. The bumped next pointer is never rolled back on failure:
// the arena is only ever reused after clear() or a swap, both of which
// reset next to a fresh value, so an overshoot is harmless.
func (a *arena[M]) alloc(k int32) (first int32, ok bool) {
	if k <= 0 {
		return 0, true
	}
	end := a.next.Add(k)
	first = end - k
	if end > a.capacity {
		return 0, false
	}
	return first, true
}

// expand atomically allocates children for parent and publishes them.
// Every child slot is fully written before the release-equivalent store
// of numChildren, satisfying spec §5's publication contract. On
// overflow the parent is left unlinked (no children published) and the
// caller gets ErrOutOfMemory; the parent's expand flag is the caller's
// responsibility to reset via node.abandonExpand so a later retry (after
// pruning frees slots) is possible.
func (a *arena[M]) expand(parent *node[M], descriptors []ChildDescriptor[M], initHint Result) error {
	k := int32(len(descriptors))
	if k == 0 {
		return nil
	}
	first, ok := a.alloc(k)
	if !ok {
		return ErrOutOfMemory
	}
	for i, d := range descriptors {
		child := &a.nodes[first+int32(i)]
		child.reset(d.Move, initHint)
		if d.InitCount > 0 {
			child.stats.Seed(d.InitCount, d.InitValue)
		}
	}
	parent.firstChild.Store(first)
	parent.numChildren.Store(k) // publish
	return nil
}

func (a *arena[M]) addValue(n *node[M], x Result) {
	n.stats.Add(x)
}

func (a *arena[M]) addRaveValue(n *node[M], x, weight Result) {
	n.rave.AddWeighted(x, weight)
}

// children returns the slice of child nodes of idx, or nil if none have
// been published yet. Order is allocation order: the stable tie-break
// for "first-encountered wins" child selection (spec §4.1).
func (a *arena[M]) children(idx int32) []node[M] {
	n := &a.nodes[idx]
	first, count := n.childRange()
	if count == 0 {
		return nil
	}
	return a.nodes[first : first+count]
}

// copySubtree deep-copies nodes reachable from srcRoot via children whose
// visit count >= minCount, allocating into dst in DFS order rooted at
// dstRoot. Returns false if abort fires before completion; the partially
// written subtree (whatever was copied so far) is retained in dst, per
// spec §4.1.
func (a *arena[M]) copySubtree(dst *arena[M], dstRoot, srcRoot int32, minCount Result, abort AbortFunc) bool {
	if abort != nil && abort() {
		return false
	}
	src := &a.nodes[srcRoot]
	dstNode := &dst.nodes[dstRoot]
	dstNode.move = src.move
	dstNode.initHint = src.initHint
	dstNode.stats = src.stats.Snapshot()
	dstNode.rave = src.rave.Snapshot()
	dstNode.flags.Store(flagCanExpand)
	if src.Terminal() {
		dstNode.flags.Store(flagTerminal)
	}

	kids := a.children(srcRoot)
	if len(kids) == 0 {
		return true
	}

	first, _ := a.at(srcRoot).childRange()
	keep := make([]int32, 0, len(kids))
	for i := range kids {
		if kids[i].stats.Count() >= minCount {
			keep = append(keep, first+int32(i))
		}
	}
	if len(keep) == 0 {
		return true
	}

	dstFirst, ok := dst.alloc(int32(len(keep)))
	if !ok {
		return false
	}
	for i, srcChild := range keep {
		if !a.copySubtree(dst, dstFirst+int32(i), srcChild, minCount, abort) {
			// Publish the prefix that did complete, so the scratch tree
			// still reflects a valid (if partial) arena.
			dstNode.firstChild.Store(dstFirst)
			dstNode.numChildren.Store(int32(i))
			return false
		}
	}
	dstNode.firstChild.Store(dstFirst)
	dstNode.numChildren.Store(int32(len(keep)))
	return true
}

// extractSubtree is copySubtree rooted at an arbitrary source node,
// written into dst's root (slot 0) -- used for reuse along a follow-up
// move sequence (spec §4.1, §4.2 step 1).
func (a *arena[M]) extractSubtree(dst *arena[M], srcNode int32, abort AbortFunc) bool {
	return a.copySubtree(dst, 0, srcNode, 0, abort)
}

// findNode follows the listed moves from root, returning the matching
// descendant, or NoIndex if the sequence leaves the tree (a move with no
// matching published child).
func (a *arena[M]) findNode(sequence []M) (NodeIndex, bool) {
	idx := int32(0)
	for _, mv := range sequence {
		kids := a.children(idx)
		if len(kids) == 0 {
			return NoIndex, false
		}
		first, _ := a.at(idx).childRange()
		found := false
		for i := range kids {
			if kids[i].move == mv {
				idx = first + int32(i)
				found = true
				break
			}
		}
		if !found {
			return NoIndex, false
		}
	}
	return NodeIndex(idx), true
}

// swap exchanges the contents of two arenas (used to make the scratch
// arena the live tree and vice versa after reuse/prune).
func (a *arena[M]) swap(other *arena[M]) {
	a.nodes, other.nodes = other.nodes, a.nodes
	an, on := a.next.Load(), other.next.Load()
	a.next.Store(on)
	other.next.Store(an)
	a.capacity, other.capacity = other.capacity, a.capacity
}
