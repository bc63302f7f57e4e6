// Package oracle defines the render engine collaborator: something able to
// load a document with authored CSS switched on or off, report computed style
// of every identified element and list authored declarations matching an
// element in cascade order.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"twc/style"
)

// ErrNotFound is returned when element with requested identity is not present
// in loaded document.
var ErrNotFound = errors.New("element not found")

// Viewport is emulated window size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Oracle is a single render session.
type Oracle interface {
	// Load makes document at url current. When cssEnabled is false authored
	// stylesheets and inline styles are suppressed.
	Load(ctx context.Context, url string, cssEnabled bool) error
	// Snapshot captures computed style of every identified element.
	Snapshot(ctx context.Context, vp Viewport) (style.Snapshot, error)
	// MatchedDeclarations lists authored declarations applying to element,
	// lowest cascade priority first.
	MatchedDeclarations(ctx context.Context, id style.Identity) ([]style.Declaration, error)
	Close() error
}

// Session serializes access to an oracle. Only one breakpoint extraction may
// drive it at a time.
type Session struct {
	sem *semaphore.Weighted
}

func NewSession() *Session {
	return &Session{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until session is free or context is done. Returned function
// releases session and is safe to call more than once.
func (s *Session) Acquire(ctx context.Context) (release func(), err error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("unable to acquire render session: %w", err)
	}
	var once sync.Once
	return func() {
		once.Do(func() { s.sem.Release(1) })
	}, nil
}
