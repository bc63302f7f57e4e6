// Package artifact persists intermediate results of a conversion run so they
// could be inspected later.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gosimple/slug"
	"go.uber.org/multierr"

	"twc/config"
)

// Artifact names.
const (
	NormalizedCSS      = "css/normalized.css"
	IdentifiedDocument = "document/identified.html"
	FinalDocument      = "document/final.html"
	Merged             = "merged.json"
	MergedTree         = "merged.txt"

	// per breakpoint
	Baseline    = "baseline.json"
	Styled      = "styled.json"
	Changed     = "changed.json"
	Attribution = "attribution.json"
	Classes     = "classes.json"
)

// BreakpointName returns name of per breakpoint artifact.
func BreakpointName(breakpoint, name string) string {
	return path.Join(slug.Make(breakpoint), name)
}

// Sink stores artifacts. Values other than []byte and string are stored as
// indented JSON.
type Sink interface {
	Store(ctx context.Context, name string, v any) error
	Close() error
}

func encode(v any) ([]byte, error) {
	switch data := v.(type) {
	case []byte:
		return data, nil
	case string:
		return []byte(data), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to encode artifact: %w", err)
	}
	return data, nil
}

// Multi stores every artifact in all sinks.
type Multi []Sink

func (m Multi) Store(ctx context.Context, name string, v any) (err error) {
	for _, s := range m {
		err = multierr.Append(err, s.Store(ctx, name, v))
	}
	return err
}

func (m Multi) Close() (err error) {
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// Dir writes artifacts as files under root directory.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("unable to create artifacts directory: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Store(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	to := filepath.Join(d.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return fmt.Errorf("unable to store artifact %s: %w", name, err)
	}
	if err := os.WriteFile(to, data, 0644); err != nil {
		return fmt.Errorf("unable to store artifact %s: %w", name, err)
	}
	return nil
}

func (d *Dir) Close() error {
	return nil
}

// Report puts artifacts into debug report archive.
type Report struct {
	rpt *config.Report
}

func NewReport(rpt *config.Report) *Report {
	return &Report{rpt: rpt}
}

func (r *Report) Store(_ context.Context, name string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	r.rpt.StoreData(path.Join("artifacts", name), data)
	return nil
}

// Close does nothing, report is owned by the caller.
func (r *Report) Close() error {
	return nil
}
