package mcts

import "errors"

// Sentinel errors surfaced by Controller.Search. Internal anomalies
// (count saturation, lost statistical updates) are logged and degraded
// instead of propagated; see Controller.SetLogger.
var (
	// ErrNoMove is returned when the root could not be expanded: either
	// the root state is terminal, or the search was aborted before the
	// first root expansion completed.
	ErrNoMove = errors.New("mcts: no move available")

	// ErrOutOfMemory is returned when the arena is exhausted and pruning
	// either is disabled or could not reduce the tree below capacity.
	// The caller should still consult Controller.LastMove(), which holds
	// the best move found before the failure, if any.
	ErrOutOfMemory = errors.New("mcts: arena exhausted")

	// ErrReuseAborted is returned when subtree-reuse extraction was cut
	// short by the cancellation flag, and the caller disabled
	// always_search (AlwaysSearch=false) so no best-effort search ran.
	ErrReuseAborted = errors.New("mcts: reuse extraction aborted")
)
