// Package state defines shared program state.
package state

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/encoding"

	"twc/config"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place. It is created
// once per run and handed to every component through context instead of
// package level globals.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// RunID identifies single program run in persisted artifacts.
	RunID string

	// used by convert subcommand
	Overwrite bool
	KeepIDs   bool
	CodePage  encoding.Encoding

	warnings      atomic.Int64
	start         time.Time
	restoreStdLog func()
}

func newLocalEnv() *LocalEnv {
	env := &LocalEnv{start: time.Now()}
	if id, err := uuid.NewV7(); err == nil {
		env.RunID = id.String()
	} else {
		env.RunID = uuid.NewString()
	}
	return env
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// CountWarnings makes logger count every recovered failure (logged at warning
// level) so the run could be summarized at the end.
func (e *LocalEnv) CountWarnings() {
	if e.Log == nil {
		return
	}
	e.Log = e.Log.WithOptions(zap.Hooks(func(ent zapcore.Entry) error {
		if ent.Level == zapcore.WarnLevel {
			e.warnings.Add(1)
		}
		return nil
	}))
}

// Warnings returns number of warnings logged since CountWarnings was called.
func (e *LocalEnv) Warnings() int64 {
	return e.warnings.Load()
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
