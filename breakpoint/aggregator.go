package breakpoint

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"twc/artifact"
	"twc/oracle"
	"twc/style"
	"twc/utility"
)

// Aggregator drives oracle through every breakpoint.
type Aggregator struct {
	log        *zap.Logger
	oracle     oracle.Oracle
	session    *oracle.Session
	attributor *style.Attributor
	assembler  *utility.Assembler
	sink       artifact.Sink
	collapse   bool
}

func NewAggregator(log *zap.Logger, o oracle.Oracle, session *oracle.Session, attributor *style.Attributor,
	assembler *utility.Assembler, sink artifact.Sink, collapse bool) *Aggregator {

	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = artifact.Multi{}
	}
	return &Aggregator{
		log:        log.Named("aggregator"),
		oracle:     o,
		session:    session,
		attributor: attributor,
		assembler:  assembler,
		sink:       sink,
		collapse:   collapse,
	}
}

// Run extracts breakpoints one by one in given order. Breakpoint which cannot
// be extracted is reported and left out, the run fails only on cancellation
// or when nothing could be extracted at all.
func (a *Aggregator) Run(ctx context.Context, url string, bps []Breakpoint) ([]*Result, error) {
	var (
		results []*Result
		errs    error
	)
	for _, bp := range bps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := a.extract(ctx, url, bp, results)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			a.log.Warn("Unable to extract breakpoint, skipping", zap.String("breakpoint", bp.Name), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		results = append(results, r)
	}
	if len(results) == 0 && len(bps) > 0 {
		return nil, fmt.Errorf("no breakpoint could be extracted: %w", errs)
	}
	if len(results) > 0 && bps[0].Default() && !results[0].Breakpoint.Default() {
		a.log.Warn("Default breakpoint was not extracted, no unqualified classes produced",
			zap.String("breakpoint", bps[0].Name), zap.String("lowest", results[0].Breakpoint.Name))
	}
	return results, nil
}

func (a *Aggregator) extract(ctx context.Context, url string, bp Breakpoint, lower []*Result) (*Result, error) {
	release, err := a.session.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	log := a.log.With(zap.String("breakpoint", bp.Name))
	vp := bp.Viewport()
	r := &Result{Breakpoint: bp}

	if err := a.oracle.Load(ctx, url, false); err != nil {
		return nil, fmt.Errorf("baseline pass: %w", err)
	}
	if r.Baseline, err = a.oracle.Snapshot(ctx, vp); err != nil {
		return nil, fmt.Errorf("baseline pass: %w", err)
	}
	if err := a.oracle.Load(ctx, url, true); err != nil {
		return nil, fmt.Errorf("styled pass: %w", err)
	}
	if r.Styled, err = a.oracle.Snapshot(ctx, vp); err != nil {
		return nil, fmt.Errorf("styled pass: %w", err)
	}

	r.Changed = style.Diff(r.Baseline, r.Styled)
	if vanished := style.Vanished(r.Baseline, r.Styled); len(vanished) > 0 {
		log.Debug("Properties vanished from styled pass, not attributed", zap.Int("elements", len(vanished)))
	}

	if r.Attribution, err = a.attributor.Attribute(ctx, r.Changed, a.oracle.MatchedDeclarations); err != nil {
		return nil, err
	}
	r.Contributed = r.Attribution
	if a.collapse {
		r.Contributed = Collapse(lower, r.Attribution)
	}
	if r.Classes, err = a.assembler.Assemble(ctx, bp.Qualifier, r.Contributed); err != nil {
		return nil, err
	}

	for _, art := range []struct {
		name string
		v    any
	}{
		{artifact.Baseline, r.Baseline},
		{artifact.Styled, r.Styled},
		{artifact.Changed, r.Changed},
		{artifact.Attribution, r.Attribution},
		{artifact.Classes, r.Classes},
	} {
		if err := a.sink.Store(ctx, artifact.BreakpointName(bp.Name, art.name), art.v); err != nil {
			log.Warn("Unable to store artifact", zap.String("artifact", art.name), zap.Error(err))
		}
	}

	log.Info("Breakpoint extracted",
		zap.Stringer("viewport", vp),
		zap.Int("elements", len(r.Styled)),
		zap.Int("changed", len(r.Changed)),
		zap.Int("attributed", len(r.Attribution)),
		zap.Int("contributed", len(r.Contributed)))
	return r, nil
}
