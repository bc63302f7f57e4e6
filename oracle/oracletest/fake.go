// Package oracletest provides in-memory Oracle for tests.
package oracletest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"twc/oracle"
	"twc/style"
)

// Render is what fake engine reports for a single viewport width.
type Render struct {
	Baseline style.Snapshot
	Styled   style.Snapshot
	Matched  map[style.Identity][]style.Declaration
	// Err fails snapshot at this width.
	Err error
	// Fail fails declaration lookups for listed elements.
	Fail map[style.Identity]error
}

// Fake serves renders keyed by viewport width. Unknown widths use the render
// with the closest lower width.
type Fake struct {
	Renders map[int]Render

	mu      sync.Mutex
	url     string
	css     bool
	current *Render
	Loads   []string
	Closed  bool
}

var _ oracle.Oracle = (*Fake)(nil)

func (f *Fake) Load(ctx context.Context, url string, cssEnabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url, f.css = url, cssEnabled
	f.Loads = append(f.Loads, fmt.Sprintf("%s css=%t", url, cssEnabled))
	return nil
}

func (f *Fake) Snapshot(ctx context.Context, vp oracle.Viewport) (style.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.url == "" {
		return nil, fmt.Errorf("no document loaded")
	}
	r, ok := f.render(vp.Width)
	if !ok {
		return nil, fmt.Errorf("no render for width %d", vp.Width)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	f.current = r
	if f.css {
		return clone(r.Styled), nil
	}
	return clone(r.Baseline), nil
}

func (f *Fake) MatchedDeclarations(ctx context.Context, id style.Identity) ([]style.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, fmt.Errorf("no snapshot taken")
	}
	if err, ok := f.current.Fail[id]; ok {
		return nil, err
	}
	decls, ok := f.current.Matched[id]
	if !ok {
		if _, known := f.current.Styled[id]; !known {
			return nil, fmt.Errorf("identity %d: %w", id, oracle.ErrNotFound)
		}
	}
	return slices.Clone(decls), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *Fake) render(width int) (*Render, bool) {
	best := -1
	for w := range f.Renders {
		if w <= width && w > best {
			best = w
		}
	}
	if best < 0 {
		return nil, false
	}
	r := f.Renders[best]
	return &r, true
}

func clone(s style.Snapshot) style.Snapshot {
	res := make(style.Snapshot, len(s))
	for id, rec := range s {
		res[id] = maps.Clone(rec)
	}
	return res
}
