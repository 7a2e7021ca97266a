// Package diag renders a color-coded snapshot of a search's root
// children to any io.Writer, for interactive debugging. It is never
// consulted by pkg/mcts itself.
package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/muesli/termenv"

	"github.com/polyomcts/mcts-core/pkg/mcts"
)

// Source is the subset of Controller[M] that Dump needs: a move
// renderer, the root children and how many simulations ran.
type Source[M mcts.Move] interface {
	MoveString(mv M) string
	Children() []mcts.ChildStat[M]
	NuSimulations() uint64
	NodeCount() int32
}

// Dump writes one row per root child to w, sorted by visit count
// descending, with the bar color scaled by that child's visit share of
// the most-visited child. The color profile comes from
// termenv.EnvColorProfile (the environment and standard output), not
// from w, so colors are plain text only when that profile is ASCII.
func Dump[M mcts.Move](w io.Writer, c Source[M]) {
	profile := termenv.EnvColorProfile()

	children := append([]mcts.ChildStat[M](nil), c.Children()...)
	sort.Slice(children, func(i, j int) bool { return children[i].Visits > children[j].Visits })

	fmt.Fprintf(w, "%s\n",
		termenv.String(fmt.Sprintf("simulations=%d nodes=%d", c.NuSimulations(), c.NodeCount())).
			Foreground(profile.Color("8")))

	if len(children) == 0 {
		fmt.Fprintln(w, termenv.String("(no children)").Foreground(profile.Color("8")))
		return
	}
	maxVisits := children[0].Visits

	for _, child := range children {
		share := 0.0
		if maxVisits > 0 {
			share = child.Visits / maxVisits
		}
		row := fmt.Sprintf("%-8s visits=%-8.0f value=%.3f", c.MoveString(child.Move), child.Visits, child.Value)
		fmt.Fprintln(w, termenv.String(row).Foreground(shareColor(profile, share)))
	}
}

// shareColor maps a [0,1] visit share to a red -> yellow -> green ANSI
// color, falling back to the profile's ASCII-safe default when the
// terminal has no color support.
func shareColor(profile termenv.Profile, share float64) termenv.Color {
	switch {
	case profile == termenv.Ascii:
		return profile.Color("")
	case share >= 0.66:
		return profile.Color("2") // green
	case share >= 0.33:
		return profile.Color("3") // yellow
	default:
		return profile.Color("1") // red
	}
}
