// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package run drives the notebook pipeline end to end: template the paths,
// inject parameters, execute, scan for cell errors, write the executed
// document, extract artifacts, and record the run.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/nbforge/internal/engine"
	"github.com/pdiddy/nbforge/internal/extract"
	"github.com/pdiddy/nbforge/internal/history"
	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/internal/params"
	"github.com/pdiddy/nbforge/internal/store"
	"github.com/pdiddy/nbforge/pkg/types"
)

// Parameter names carrying the resolved paths into the notebook when path
// injection is requested.
const (
	InjectedInputName  = "NBFORGE_INPUT_PATH"
	InjectedOutputName = "NBFORGE_OUTPUT_PATH"
)

const defaultWorkers = 4

// Deps bundles the pipeline's collaborators.
type Deps struct {
	// Store reads and writes notebooks and artifacts.
	Store *store.Store

	// History records finished runs; nil disables recording.
	History *history.Store

	// Engines resolves engine names; nil uses the built-in registry.
	Engines *engine.Registry

	// Exec carries engine construction settings (image, timeout, kernel).
	Exec types.ExecutionConfig

	// Logger receives structured pipeline detail; nil logs nothing.
	Logger *zap.Logger

	// Progress receives human-readable batch status lines; nil discards.
	Progress io.Writer
}

// Options configure a single notebook run.
type Options struct {
	// InputPath and OutputPath may carry {name} placeholders filled from
	// the parameters plus the run_uuid and current_datetime builtins.
	InputPath  string
	OutputPath string

	// Params are the caller's parameters, in injection order.
	Params *params.Set

	// ExtractTags name the cell tags extracted into artifacts.
	ExtractTags []string

	// Engine overrides the configured execution engine.
	Engine string

	// KernelName and Language override the notebook's metadata.
	KernelName string
	Language   string

	// CWD is the kernel's working directory.
	CWD string

	// ReportMode hides code cell sources in rendered views.
	ReportMode bool

	// LogOutput mirrors executed cell outputs into the log.
	LogOutput bool

	// InjectInputPath and InjectOutputPath add the resolved paths to the
	// injected parameters under NBFORGE_INPUT_PATH / NBFORGE_OUTPUT_PATH.
	InjectInputPath  bool
	InjectOutputPath bool

	// DryRun parameterizes and writes but skips execution and history.
	DryRun bool

	// ProjectRoot is the source tree scanned for artifact imports.
	ProjectRoot string

	// ArtifactRoot overrides where artifacts land; empty defaults to the
	// output notebook's directory.
	ArtifactRoot string
}

// Result describes one attempted run.
type Result struct {
	RunID       string
	InputPath   string
	OutputPath  string
	ArtifactDir string
	Status      types.RunStatus
	Err         error
	Started     time.Time
	Finished    time.Time
}

// Run executes one notebook through the pipeline. Execution failures come
// back in both the Result and the error, after the annotated document has
// been written to the output path and the run recorded.
func Run(ctx context.Context, deps Deps, opts Options) (*Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runID := uuid.NewString()
	started := time.Now().UTC()

	builtins := params.AddBuiltins(opts.Params, runID, started)
	inputPath, err := params.TemplatePath(opts.InputPath, builtins)
	if err != nil {
		return nil, fmt.Errorf("templating input path: %w", err)
	}
	outputPath, err := params.TemplatePath(opts.OutputPath, builtins)
	if err != nil {
		return nil, fmt.Errorf("templating output path: %w", err)
	}

	logger.Info("running notebook",
		zap.String("input", deps.Store.PrettyPath(inputPath)),
		zap.String("output", deps.Store.PrettyPath(outputPath)),
		zap.String("run_id", runID))

	nb, err := deps.Store.ReadNotebook(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	injected := effectiveParams(opts, inputPath, outputPath)
	if injected.Len() > 0 {
		params.WarnUnknown(nb, injected, opts.KernelName, opts.Language, logger)
		err := params.Parameterize(nb, injected, params.InjectOptions{
			ReportMode: opts.ReportMode,
			Kernel:     opts.KernelName,
			Language:   opts.Language,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	engine.PrepareMetadata(nb, inputPath, outputPath, opts.ReportMode)
	engine.RemoveErrorMarkers(nb)

	res := &Result{
		RunID:      runID,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Started:    started,
	}
	engName := resolveEngineName(deps, opts)

	executed, execErr := nb, error(nil)
	if !opts.DryRun {
		executed, execErr = execute(ctx, deps, engName, opts, nb, logger)
		if cellErr := engine.RaiseForErrors(executed); cellErr != nil {
			// A recorded cell error beats whatever the process reported.
			execErr = cellErr
		}
		if execErr != nil {
			executed.ToolMetadata()["exception"] = true
		}
		if opts.LogOutput || deps.Exec.LogOutput {
			engine.LogOutputs(executed, logger)
		}
	}

	if writeErr := deps.Store.WriteNotebook(ctx, executed, outputPath); writeErr != nil {
		logger.Error("writing output notebook", zap.Error(writeErr))
		if execErr == nil {
			execErr = writeErr
		}
	}

	if execErr == nil && len(opts.ExtractTags) > 0 {
		if root := artifactRoot(opts, outputPath); root != "" {
			extractor := extract.New(deps.Store, logger)
			dir, extractErr := extractor.Extract(ctx, executed, extract.Options{
				Tags:        opts.ExtractTags,
				RunID:       runID,
				Root:        root,
				ProjectRoot: opts.ProjectRoot,
			})
			if extractErr != nil {
				execErr = extractErr
			}
			res.ArtifactDir = dir
		} else {
			logger.Info("no artifact root resolvable; skipping extraction")
		}
	}

	res.Finished = time.Now().UTC()
	res.Status = statusFor(execErr)
	res.Err = execErr

	if deps.History != nil && !opts.DryRun {
		if recErr := deps.History.Record(ctx, runRecord(res, opts, engName, injected, nb)); recErr != nil {
			logger.Warn("recording run history", zap.Error(recErr))
		}
	}

	if execErr != nil {
		return res, execErr
	}
	return res, nil
}

// execute resolves and runs the engine, stamping start_time, end_time and
// duration into the executed document's tool metadata. The returned
// document is never nil.
func execute(ctx context.Context, deps Deps, name types.EngineName, opts Options, nb *notebook.Notebook, logger *zap.Logger) (*notebook.Notebook, error) {
	registry := deps.Engines
	if registry == nil {
		registry = engine.Engines
	}
	eng, err := registry.New(name, deps.Exec, logger)
	if err != nil {
		return nb, err
	}

	kernel := opts.KernelName
	if kernel == "" {
		kernel = deps.Exec.Kernel
	}

	start := time.Now().UTC()
	nb.ToolMetadata()["start_time"] = start.Format(time.RFC3339)

	executed, execErr := eng.Execute(ctx, nb, engine.Options{
		Kernel:  kernel,
		Cwd:     opts.CWD,
		Timeout: deps.Exec.Timeout,
	})
	end := time.Now().UTC()

	if executed == nil {
		executed = nb
	}
	meta := executed.ToolMetadata()
	meta["start_time"] = start.Format(time.RFC3339)
	meta["end_time"] = end.Format(time.RFC3339)
	meta["duration"] = end.Sub(start).Seconds()

	return executed, execErr
}

func resolveEngineName(deps Deps, opts Options) types.EngineName {
	if opts.Engine != "" {
		return types.EngineName(opts.Engine)
	}
	if deps.Exec.Engine != "" {
		return deps.Exec.Engine
	}
	return types.EngineJupyter
}

// effectiveParams builds the set actually injected: the resolved paths
// first when requested, then the caller's values on top.
func effectiveParams(opts Options, inputPath, outputPath string) *params.Set {
	set := params.NewSet()
	if opts.InjectInputPath {
		set.Set(InjectedInputName, inputPath)
	}
	if opts.InjectOutputPath {
		set.Set(InjectedOutputName, outputPath)
	}
	if opts.Params != nil {
		set.Merge(opts.Params, nil)
	}
	return set
}

// artifactRoot picks where artifacts land: the explicit root, else next to
// the output notebook. Streamed or absent outputs have nowhere to default.
func artifactRoot(opts Options, outputPath string) string {
	if opts.ArtifactRoot != "" {
		return opts.ArtifactRoot
	}
	if outputPath == "" || outputPath == "-" {
		return ""
	}
	return filepath.Dir(outputPath)
}

func statusFor(err error) types.RunStatus {
	switch {
	case err == nil:
		return types.RunSucceeded
	case errors.Is(err, engine.ErrDeadKernel):
		return types.RunDeadKernel
	default:
		return types.RunFailed
	}
}

func runRecord(res *Result, opts Options, engName types.EngineName, set *params.Set, nb *notebook.Notebook) *types.Run {
	paramsJSON := ""
	if set.Len() > 0 {
		if data, err := json.Marshal(set); err == nil {
			paramsJSON = string(data)
		}
	}

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}

	kernel := opts.KernelName
	if kernel == "" {
		kernel = nb.KernelName()
	}
	language := opts.Language
	if language == "" {
		language = nb.Language()
	}

	return &types.Run{
		ID:          res.RunID,
		InputPath:   res.InputPath,
		OutputPath:  res.OutputPath,
		Engine:      string(engName),
		Kernel:      kernel,
		Language:    language,
		Parameters:  paramsJSON,
		ExtractTags: opts.ExtractTags,
		ArtifactDir: res.ArtifactDir,
		Status:      res.Status,
		Error:       errMsg,
		StartedAt:   res.Started,
		FinishedAt:  res.Finished,
		Duration:    res.Finished.Sub(res.Started),
	}
}

// BatchResult summarizes a directory run.
type BatchResult struct {
	Succeeded int
	Failed    int
}

// Total returns the number of notebooks attempted.
func (r BatchResult) Total() int { return r.Succeeded + r.Failed }

// HasFailures reports whether any notebook failed.
func (r BatchResult) HasFailures() bool { return r.Failed > 0 }

// RunBatch executes every notebook in dir, writing each result to outDir
// under the same base name, at most workers at a time. A failing notebook
// does not stop the others; the summary and the first failure come back
// when all are done. Distinct base names from the listing keep output
// paths from colliding.
func RunBatch(ctx context.Context, deps Deps, dir, outDir string, opts Options, workers int) (BatchResult, error) {
	w := deps.Progress
	if w == nil {
		w = io.Discard
	}

	paths, err := deps.Store.ListNotebooks(ctx, dir)
	if err != nil {
		return BatchResult{}, err
	}
	if len(paths) == 0 {
		return BatchResult{}, fmt.Errorf("no notebooks in %s", dir)
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	var (
		mu       sync.Mutex
		result   BatchResult
		firstErr error
	)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, path := range paths {
		path := path // per-iteration copy; required while go.mod targets go < 1.22
		g.Go(func() error {
			runOpts := opts
			runOpts.InputPath = path
			runOpts.OutputPath = filepath.Join(outDir, filepath.Base(path))

			start := time.Now()
			_, runErr := Run(ctx, deps, runOpts)
			elapsed := time.Since(start).Round(time.Millisecond)

			mu.Lock()
			defer mu.Unlock()
			base := filepath.Base(path)
			if runErr != nil {
				result.Failed++
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", base, runErr)
				}
				fmt.Fprintf(w, "FAILED  %s (%s): %s\n", base, elapsed, oneLine(runErr))
			} else {
				result.Succeeded++
				fmt.Fprintf(w, "ok      %s (%s)\n", base, elapsed)
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through result; nothing returns an error

	fmt.Fprintf(w, "\nBatch summary: %d succeeded, %d failed (total: %d)\n",
		result.Succeeded, result.Failed, result.Total())

	return result, firstErr
}

// oneLine compacts an error for a status line: its last non-empty line,
// which for cell tracebacks is the exception message.
func oneLine(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return err.Error()
}
