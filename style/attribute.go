package style

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Lookup returns authored declarations matching element in cascade order.
type Lookup func(ctx context.Context, id Identity) ([]Declaration, error)

// Attributor resolves changed properties to authored values.
type Attributor struct {
	log     *zap.Logger
	workers int
}

// NewAttributor creates attributor performing up to workers lookups at once.
func NewAttributor(log *zap.Logger, workers int) *Attributor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Attributor{log: log.Named("attribution"), workers: max(workers, 1)}
}

// Attribute finds the winning authored declaration for every changed property.
// Elements lookup cannot resolve are skipped with a warning, elements which
// changed without any matching authored declaration (inheritance, user agent
// defaults) are omitted. Only context cancellation aborts the whole run.
func (a *Attributor) Attribute(ctx context.Context, changed ChangedSet, lookup Lookup) (Attribution, error) {
	ids := changed.Identities()
	slots := make([][]Attributed, len(ids))

	var failed, unattributed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(a.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			decls, err := lookup(ctx, id)
			if err == nil {
				err = validate(decls)
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return err
				}
				failed.Add(1)
				a.log.Warn("Unable to resolve element, skipping", zap.Stringer("identity", id), zap.Error(err))
				return nil
			}
			if slots[i] = Resolve(changed[id], decls); len(slots[i]) == 0 {
				unattributed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("attribution interrupted: %w", err)
	}

	res := make(Attribution, len(ids))
	for i, id := range ids {
		if len(slots[i]) > 0 {
			res[id] = slots[i]
		}
	}
	a.log.Debug("Attribution done",
		zap.Int("changed", len(ids)),
		zap.Int("attributed", len(res)),
		zap.Int64("unattributed", unattributed.Load()),
		zap.Int64("failed", failed.Load()))
	return res, nil
}

// Resolve walks declarations in cascade order and keeps the winner for every
// property present in the sorted changed list. Result is ordered by first
// appearance of property.
func Resolve(changed []string, decls []Declaration) []Attributed {
	var (
		res     []Attributed
		winners []Declaration
		index   = make(map[string]int)
	)
	for _, d := range decls {
		if _, ok := slices.BinarySearch(changed, d.Property); !ok {
			continue
		}
		i, seen := index[d.Property]
		if !seen {
			index[d.Property] = len(res)
			res = append(res, Attributed{Property: d.Property, Value: d.Value, Rank: d.Rank})
			winners = append(winners, d)
			continue
		}
		if d.Outranks(winners[i]) {
			winners[i] = d
			res[i] = Attributed{Property: d.Property, Value: d.Value, Rank: d.Rank}
		}
	}
	return res
}

func validate(decls []Declaration) error {
	for i, d := range decls {
		if d.Property == "" || d.Value == "" {
			return fmt.Errorf("malformed declaration %d: property %q, value %q", i, d.Property, d.Value)
		}
		if d.Rank < 0 {
			return fmt.Errorf("malformed declaration %d: negative rank %d", i, d.Rank)
		}
	}
	return nil
}
