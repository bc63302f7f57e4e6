// Package convert implements conversion pipeline: stylesheet normalization,
// element numbering, per breakpoint extraction through render oracle and
// document decoration with utility classes.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"twc/artifact"
	"twc/breakpoint"
	"twc/config"
	"twc/css"
	"twc/dom"
	"twc/misc"
	"twc/oracle"
	"twc/state"
	"twc/style"
	"twc/utility"
)

// OracleFactory creates render oracle for a single run.
type OracleFactory func(ctx context.Context, cfg *config.OracleConfig, attr string, log *zap.Logger) (oracle.Oracle, error)

func newChrome(ctx context.Context, cfg *config.OracleConfig, attr string, log *zap.Logger) (oracle.Oracle, error) {
	c, err := oracle.NewChrome(ctx, cfg, attr, log)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input document has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	sheet := cmd.Args().Get(1)
	if len(sheet) == 0 {
		return errors.New("no input stylesheet has been specified")
	}
	if sheet, err = filepath.Abs(sheet); err != nil {
		return err
	}

	dst := cmd.Args().Get(2)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 3 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[3:]))
	}

	env.Overwrite = cmd.Bool("overwrite")
	env.KeepIDs = cmd.Bool("keep-ids") || env.Cfg.Document.KeepIdentities

	// documents without declared charset may need to be forced
	cp := cmd.String("charset")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully decoding input document", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("document", src), zap.String("stylesheet", sheet), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)), zap.Int64("warnings", env.Warnings()))
	}(time.Now())

	_, err = process(ctx, src, sheet, dst, newChrome, log)
	return err
}

// process handles the core conversion logic independently of CLI framework
// and returns path of decorated document.
func process(ctx context.Context, src, sheet, dst string, newOracle OracleFactory, log *zap.Logger) (outputName string, rerr error) {
	env := state.EnvFromContext(ctx)
	cfg := env.Cfg

	stylesheet, err := readText(sheet)
	if err != nil {
		return "", fmt.Errorf("unable to read stylesheet: %w", err)
	}
	page, err := readText(src)
	if err != nil {
		return "", fmt.Errorf("unable to read document: %w", err)
	}

	sink, err := openSinks(ctx, src, env)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			rerr = multierr.Append(rerr, fmt.Errorf("unable to close artifacts: %w", err))
		}
	}()
	store := func(name string, v any) {
		if err := sink.Store(ctx, name, v); err != nil {
			log.Warn("Unable to store artifact", zap.String("artifact", name), zap.Error(err))
		}
	}

	// later stages see longhands only, expand_shorthands affects "normalize" command
	normalizer := css.NewNormalizer(log, true)
	if !cfg.Normalizer.ExpandShorthands {
		log.Debug("Shorthand expansion is always on for conversion")
	}
	normalized := normalizer.Normalize(stylesheet, filepath.Base(sheet))
	store(artifact.NormalizedCSS, normalized.Bytes())

	doc, err := dom.Parse(bytes.NewReader(page), env.CodePage)
	if err != nil {
		return "", fmt.Errorf("unable to parse document (%s): %w", src, err)
	}
	doc.Prepare(normalized.Bytes(), func(block string) string {
		return css.Block(normalizer.NormalizeDeclarations(block))
	})
	count, err := doc.Assign(cfg.Document.Root, cfg.Document.IdentityAttribute)
	if err != nil {
		return "", fmt.Errorf("unable to number elements (%s): %w", src, err)
	}
	identified, err := doc.Bytes()
	if err != nil {
		return "", fmt.Errorf("unable to render document: %w", err)
	}
	store(artifact.IdentifiedDocument, identified)
	log.Debug("Document prepared", zap.Int("elements", count), zap.Int("rules", len(normalized.Sheet.Rules())))

	bps := breakpoint.FromConfig(cfg.Breakpoints)
	values := Values{
		Name:        baseName(src),
		Stylesheet:  baseName(sheet),
		Title:       doc.Title(),
		RunID:       env.RunID,
		Breakpoints: make([]string, 0, len(bps)),
	}
	for _, bp := range bps {
		values.Breakpoints = append(values.Breakpoints, bp.Name)
	}
	outputName = buildOutputPath(values, dst, env)
	if err := prepareOutput(outputName, env.Overwrite, log); err != nil {
		return "", err
	}

	// oracle loads numbered document from disk
	tmp, err := os.MkdirTemp("", misc.GetAppName()+"-")
	if err != nil {
		return "", fmt.Errorf("unable to create working directory: %w", err)
	}
	defer os.RemoveAll(tmp)
	pagePath := filepath.Join(tmp, "identified.html")
	if err := os.WriteFile(pagePath, identified, 0644); err != nil {
		return "", fmt.Errorf("unable to write working document: %w", err)
	}

	o, err := newOracle(ctx, &cfg.Oracle, cfg.Document.IdentityAttribute, log)
	if err != nil {
		return "", fmt.Errorf("unable to start render oracle: %w", err)
	}
	defer func() {
		if err := o.Close(); err != nil {
			rerr = multierr.Append(rerr, fmt.Errorf("unable to close render oracle: %w", err))
		}
	}()

	workers := cfg.Oracle.Workers
	agg := breakpoint.NewAggregator(log, o, oracle.NewSession(),
		style.NewAttributor(log, workers),
		utility.NewAssembler(log, utility.NewTranslator(&cfg.Translator, log), workers),
		sink, cfg.Merge.CollapseRedundant)

	results, err := agg.Run(ctx, fileURL(pagePath), bps)
	if err != nil {
		return "", err
	}

	merged := breakpoint.Merge(results)
	store(artifact.Merged, merged)
	store(artifact.MergedTree, dumpMerged(doc, bps, merged))

	doc.Decorate(merged.Classes, env.KeepIDs)
	final, err := doc.Bytes()
	if err != nil {
		return "", fmt.Errorf("unable to render document: %w", err)
	}
	store(artifact.FinalDocument, final)

	if err := os.WriteFile(outputName, final, 0644); err != nil {
		return "", fmt.Errorf("unable to write output: %w", err)
	}

	log.Info("Conversion completed",
		zap.String("to", outputName),
		zap.String("run", env.RunID),
		zap.Int("elements", count),
		zap.Int("decorated", len(merged.Classes)),
		zap.Int("breakpoints", len(results)))
	return outputName, nil
}

// readText reads input file refusing anything recognizable as binary content.
func readText(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return nil, fmt.Errorf("%s looks like binary file (%s)", path, kind.MIME.Value)
	}
	return data, nil
}

// openSinks prepares artifact destinations requested by configuration.
func openSinks(ctx context.Context, src string, env *state.LocalEnv) (artifact.Multi, error) {
	var sinks artifact.Multi

	if dir := env.Cfg.Artifacts.Directory; dir != "" {
		d, err := artifact.NewDir(filepath.Join(dir, env.RunID))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d)
	}
	if path := env.Cfg.Artifacts.Database; path != "" {
		db, err := artifact.OpenDB(path)
		if err != nil {
			return nil, multierr.Append(err, sinks.Close())
		}
		sinks = append(sinks, db)
		if err := db.Begin(ctx, env.RunID, src); err != nil {
			return nil, multierr.Append(err, sinks.Close())
		}
	}
	if env.Rpt != nil {
		sinks = append(sinks, artifact.NewReport(env.Rpt))
	}
	return sinks, nil
}

func prepareOutput(outputName string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		return os.Remove(outputName)
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
