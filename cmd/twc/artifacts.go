package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"twc/artifact"
	"twc/state"
	"twc/utils/debug"
)

const latestRun = "latest"

func openArtifacts(ctx context.Context, cmd *cli.Command) (*artifact.DB, error) {
	env := state.EnvFromContext(ctx)

	path := cmd.String("database")
	if len(path) == 0 {
		path = env.Cfg.Artifacts.Database
	}
	if len(path) == 0 {
		return nil, errors.New("artifacts database is not configured")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("unable to access artifacts database: %w", err)
	}
	return artifact.OpenDB(path)
}

// resolveRun expands "latest" into id of the most recent run.
func resolveRun(ctx context.Context, db *artifact.DB, id string) (string, error) {
	if id != latestRun {
		return id, nil
	}
	runs, err := db.Runs(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs recorded")
	}
	return runs[len(runs)-1].ID, nil
}

func listArtifacts(ctx context.Context, cmd *cli.Command) (err error) {
	db, err := openArtifacts(ctx, cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	tw := debug.NewTreeWriter()
	if id := cmd.Args().Get(0); len(id) > 0 {
		if id, err = resolveRun(ctx, db, id); err != nil {
			return err
		}
		names, err := db.Names(ctx, id)
		if err != nil {
			return err
		}
		tw.Line(0, "run %s", id)
		for _, name := range names {
			tw.Line(1, "%s", name)
		}
	} else {
		runs, err := db.Runs(ctx)
		if err != nil {
			return err
		}
		rows := make([][2]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, [2]string{r.ID, r.Started.Local().Format(time.DateTime) + " " + strconv.Itoa(r.Artifacts) + " " + r.Source})
		}
		tw.Table(0, rows)
	}
	_, err = io.WriteString(os.Stdout, tw.String())
	return err
}

func dumpArtifact(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if cmd.Args().Len() < 2 {
		return errors.New("run and artifact name must be specified")
	}
	db, err := openArtifacts(ctx, cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := resolveRun(ctx, db, cmd.Args().Get(0))
	if err != nil {
		return err
	}
	name := cmd.Args().Get(1)
	data, err := db.Load(ctx, id, name)
	if err != nil {
		return err
	}

	fname := cmd.Args().Get(2)
	out := os.Stdout
	if len(fname) > 0 {
		if out, err = os.Create(fname); err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	} else {
		fname = "STDOUT"
	}
	env.Log.Debug("Dumping artifact", zap.String("run", id), zap.String("name", name), zap.String("file", fname))

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("unable to write artifact: %w", err)
	}
	return nil
}
