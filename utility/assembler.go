package utility

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twc/css"
	"twc/style"
)

// Assembler builds utility class string for every attributed element.
type Assembler struct {
	log     *zap.Logger
	tr      Translator
	workers int
}

func NewAssembler(log *zap.Logger, tr Translator, workers int) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{log: log.Named("assembler"), tr: tr, workers: max(workers, 1)}
}

// Assemble returns qualified classes per element. Only cancellation fails it.
func (a *Assembler) Assemble(ctx context.Context, qualifier string, attr style.Attribution) (map[style.Identity]string, error) {
	ids := attr.Identities()
	slots := make([]string, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(a.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cls, err := a.Element(ctx, qualifier, attr[id])
			if err != nil {
				return err
			}
			slots[i] = cls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("class assembly interrupted: %w", err)
	}

	res := make(map[style.Identity]string, len(ids))
	for i, id := range ids {
		if slots[i] != "" {
			res[id] = slots[i]
		}
	}
	return res, nil
}

// Element translates declarations of single element. Properties translator
// does not handle are expressed with arbitrary value classes, properties
// without fallback prefix are dropped.
func (a *Assembler) Element(ctx context.Context, qualifier string, decls []style.Attributed) (string, error) {
	if len(decls) == 0 {
		return "", nil
	}
	block := Block(decls)

	tr, err := a.tr.Translate(ctx, block)
	switch {
	case err != nil && ctx.Err() != nil:
		return "", ctx.Err()
	case err != nil:
		a.log.Warn("Translation failed, using fallback", zap.String("block", block), zap.Error(err))
		tr = Translation{}
	case !tr.OK:
		a.log.Debug("Translator could not express block, using fallback", zap.String("block", block))
	}

	var classes []string
	if tr.OK {
		classes = strings.Fields(tr.Classes)
	}
	for _, d := range decls {
		if tr.OK && !slices.Contains(tr.Unmatched, d.Property) {
			continue
		}
		cls, ok := Fallback(d.Property, d.Value)
		if !ok {
			a.log.Debug("No utility for property, dropped", zap.String("property", d.Property), zap.String("value", d.Value))
			continue
		}
		classes = append(classes, cls)
	}
	return Qualify(qualifier, strings.Join(classes, " ")), nil
}

// Block renders attributed declarations as CSS declaration block.
func Block(decls []style.Attributed) string {
	cd := make([]css.Declaration, len(decls))
	for i, d := range decls {
		cd[i] = css.Declaration{Property: d.Property, Value: d.Value}
	}
	return css.Block(cd)
}
