// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

const binJupyter = "jupyter"

// Jupyter executes notebooks by piping them through a local
// `jupyter nbconvert --execute` process. Errors are allowed so the executed
// document always comes back with its outputs; failure detection happens on
// the result.
type Jupyter struct {
	exec   executor
	logger *zap.Logger
}

// NewJupyter builds the jupyter engine.
func NewJupyter(logger *zap.Logger) *Jupyter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jupyter{exec: defaultExec, logger: logger}
}

func (j *Jupyter) Name() types.EngineName { return types.EngineJupyter }

func (j *Jupyter) Execute(ctx context.Context, nb *notebook.Notebook, opts Options) (*notebook.Notebook, error) {
	if _, err := j.exec.LookPath(binJupyter); err != nil {
		return nil, fmt.Errorf("jupyter not found on PATH: %w", err)
	}

	args := []string{"nbconvert", "--to", "notebook", "--execute", "--allow-errors", "--stdin", "--stdout"}
	if opts.Kernel != "" {
		args = append(args, "--ExecutePreprocessor.kernel_name="+opts.Kernel)
	}
	if opts.Timeout > 0 {
		args = append(args, fmt.Sprintf("--ExecutePreprocessor.timeout=%d", int(opts.Timeout.Seconds())))
	}

	data, err := nb.Bytes()
	if err != nil {
		return nil, err
	}

	j.logger.Debug("executing notebook",
		zap.String("engine", string(types.EngineJupyter)),
		zap.Strings("args", args))

	var stdout, stderr bytes.Buffer
	runErr := j.exec.RunPiped(ctx, opts.Cwd, binJupyter, args, bytes.NewReader(data), &stdout, &stderr)
	if runErr != nil {
		runErr = processError("jupyter nbconvert", runErr, stderr.String())
	}

	// A failed process may still leave a parseable document on stdout;
	// return it alongside the error so callers can scan its cells.
	executed, parseErr := notebook.Parse(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return nil, runErr
		}
		return nil, fmt.Errorf("jupyter nbconvert output: %w", parseErr)
	}
	return executed, runErr
}

// processError classifies a failed engine process: a dead kernel is its own
// error so the CLI can map it to exit 138, everything else carries the
// process stderr.
func processError(what string, err error, stderr string) error {
	if stderrMentionsDeadKernel(stderr) {
		return fmt.Errorf("%s: %w", what, ErrDeadKernel)
	}
	if tail := stderrTail(stderr); tail != "" {
		return fmt.Errorf("%s: %w: %s", what, err, tail)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func stderrMentionsDeadKernel(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "kernel died")
}

// stderrTail returns the last non-empty stderr line, which for jupyter
// tracebacks is the actual exception message.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
