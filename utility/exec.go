package utility

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"twc/config"
)

// Exec runs external translator for every block. Block is written to the
// process stdin, Translation is read as JSON from its stdout.
type Exec struct {
	log     *zap.Logger
	command string
	args    []string
	timeout time.Duration
}

func NewExec(cfg *config.TranslatorConfig, log *zap.Logger) *Exec {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exec{
		log:     log.Named("translator"),
		command: cfg.Command,
		args:    cfg.Args,
		timeout: cfg.Timeout,
	}
}

func (e *Exec) Translate(ctx context.Context, block string) (Translation, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = strings.NewReader(block)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Translation{}, fmt.Errorf("translator %s: %w", e.command, ctx.Err())
		}
		return Translation{}, fmt.Errorf("translator %s failed: %w: %s", e.command, err, strings.TrimSpace(stderr.String()))
	}
	if stderr.Len() > 0 {
		e.log.Debug("Translator diagnostics", zap.String("block", block), zap.String("stderr", stderr.String()))
	}

	var tr Translation
	if err := json.Unmarshal(stdout.Bytes(), &tr); err != nil {
		return Translation{}, fmt.Errorf("translator %s returned malformed answer: %w", e.command, err)
	}
	return tr, nil
}
