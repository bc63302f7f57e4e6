// Package breakpoint runs extraction once per viewport condition and merges
// per breakpoint results into qualified declarations.
package breakpoint

import (
	"cmp"
	"slices"

	"github.com/maruel/natural"

	"twc/config"
	"twc/oracle"
	"twc/style"
)

// Breakpoint is named viewport condition.
type Breakpoint struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	MinWidth  int    `json:"min_width"`
	Qualifier string `json:"qualifier,omitempty"`
}

func (b Breakpoint) Viewport() oracle.Viewport {
	return oracle.Viewport{Width: b.Width, Height: b.Height}
}

// Default reports whether breakpoint contributes unqualified classes.
func (b Breakpoint) Default() bool {
	return b.Qualifier == ""
}

// FromConfig returns breakpoints in merge order: ascending min width, ties
// ordered naturally by name. The first one is the default breakpoint and gets
// no qualifier, others use configured qualifier or "<name>:".
func FromConfig(cfgs []config.BreakpointConfig) []Breakpoint {
	bps := make([]Breakpoint, len(cfgs))
	for i, c := range cfgs {
		bps[i] = Breakpoint{
			Name:      c.Name,
			Width:     c.Width,
			Height:    c.Height,
			MinWidth:  c.MinWidth,
			Qualifier: c.Qualifier,
		}
	}
	slices.SortStableFunc(bps, func(a, b Breakpoint) int {
		if c := cmp.Compare(a.MinWidth, b.MinWidth); c != 0 {
			return c
		}
		switch {
		case natural.Less(a.Name, b.Name):
			return -1
		case natural.Less(b.Name, a.Name):
			return 1
		}
		return 0
	})
	for i := range bps {
		switch {
		case i == 0:
			bps[i].Qualifier = ""
		case bps[i].Qualifier == "":
			bps[i].Qualifier = bps[i].Name + ":"
		}
	}
	return bps
}

// Result is everything extracted for single breakpoint. Contributed is the
// part of Attribution left after redundant declarations were collapsed, it is
// what Classes are built from.
type Result struct {
	Breakpoint  Breakpoint
	Baseline    style.Snapshot
	Styled      style.Snapshot
	Changed     style.ChangedSet
	Attribution style.Attribution
	Contributed style.Attribution
	Classes     map[style.Identity]string
}
