package state

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestContextWithEnv(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)
	if env == nil {
		t.Fatal("EnvFromContext() returned nil")
	}
	if env.start.IsZero() {
		t.Error("Environment start time not set")
	}
	if _, err := uuid.Parse(env.RunID); err != nil {
		t.Errorf("RunID %q is not a valid uuid: %v", env.RunID, err)
	}

	other := EnvFromContext(ContextWithEnv(context.Background()))
	if other.RunID == env.RunID {
		t.Error("Expected distinct run ids for distinct environments")
	}
}

func TestEnvFromContext_PanicsWithoutEnv(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when env not in context")
		}
	}()
	EnvFromContext(context.Background())
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))
	time.Sleep(10 * time.Millisecond)
	if uptime := env.Uptime(); uptime < 10*time.Millisecond {
		t.Errorf("Uptime() = %v, expected at least 10ms", uptime)
	}
}

func TestLocalEnv_CountWarnings(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))
	env.Log = zaptest.NewLogger(t)
	env.CountWarnings()

	env.Log.Info("not counted")
	env.Log.Warn("first")
	env.Log.Named("child").Warn("second", zap.Int("identity", 3))
	env.Log.Error("not counted either")

	if got := env.Warnings(); got != 2 {
		t.Errorf("Warnings() = %d, want 2", got)
	}
}

func TestLocalEnv_RedirectStdLog(t *testing.T) {
	t.Run("with logger", func(t *testing.T) {
		env := &LocalEnv{Log: zaptest.NewLogger(t)}
		env.RedirectStdLog()
		if env.restoreStdLog == nil {
			t.Error("Expected restoreStdLog to be set")
		}
		env.RestoreStdLog()
	})

	t.Run("without logger", func(t *testing.T) {
		env := &LocalEnv{}
		env.RedirectStdLog()
		env.RestoreStdLog()
		if env.restoreStdLog != nil {
			t.Error("Expected restoreStdLog to stay nil")
		}
	})
}
