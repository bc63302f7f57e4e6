package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"twc/css"
	"twc/state"
)

func normalizeStylesheet(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("normalize")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input stylesheet has been specified")
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}
	res := css.NewNormalizer(log, env.Cfg.Normalizer.ExpandShorthands).Normalize(data, src)

	fname := cmd.Args().Get(1)
	out := os.Stdout
	if len(fname) > 0 {
		if _, err := os.Stat(fname); err == nil && !cmd.Bool("overwrite") {
			return fmt.Errorf("output file already exists: %s", fname)
		}
		if out, err = os.Create(fname); err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	} else {
		fname = "STDOUT"
	}

	if _, err := res.Sheet.WriteTo(out); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	log.Info("Stylesheet normalized",
		zap.String("file", fname),
		zap.Int("rules", len(res.Sheet.Rules())),
		zap.Int("expanded", res.Expanded),
		zap.Int("kept", res.Kept),
		zap.Int("dropped", res.Dropped),
		zap.Int("warnings", len(res.Warnings())))
	return nil
}
