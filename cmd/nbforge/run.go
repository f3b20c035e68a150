// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/history"
	"github.com/pdiddy/nbforge/internal/params"
	"github.com/pdiddy/nbforge/internal/run"
	"github.com/pdiddy/nbforge/internal/store"
	"github.com/pdiddy/nbforge/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run INPUT [OUTPUT]",
	Short: "Execute a notebook with injected parameters",
	Long: `Run injects parameters into a copy of the input notebook, executes it,
scans the result for exceptions, and saves the executed document to OUTPUT.
Omitting OUTPUT executes without saving; '-' reads from stdin or writes to
stdout. Both paths accept {parameter} placeholders plus the {run_uuid} and
{current_datetime} builtins.

Parameters may come from typed pairs (-p), raw string pairs (-r), YAML files
(-f), YAML literals (-y), or base64-encoded YAML (-b). Later sources win:
base64, then files, then literals, then typed, then raw pairs.

With --batch, INPUT names a directory and every notebook in it runs
concurrently, each saved under --output-dir with the same file name.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNotebook,
}

func init() {
	// Parameter sources.
	runCmd.Flags().StringArrayP("parameter", "p", nil, "typed parameter as name=value: True/False, None, numbers, else string (repeatable)")
	runCmd.Flags().StringArrayP("parameter-raw", "r", nil, "string parameter as name=value, no type resolution (repeatable)")
	runCmd.Flags().StringArrayP("parameter-file", "f", nil, "YAML or JSON parameter file: local path, URL, or '-' (repeatable)")
	runCmd.Flags().StringArrayP("parameter-yaml", "y", nil, "YAML literal holding parameter values (repeatable)")
	runCmd.Flags().StringArrayP("parameter-base64", "b", nil, "base64-encoded YAML parameter values (repeatable)")

	// Execution.
	runCmd.Flags().String("engine", "", "execution engine: jupyter, container, or none (default from config)")
	runCmd.Flags().StringP("kernel", "k", "", "kernel name override")
	runCmd.Flags().StringP("language", "l", "", "kernel language override")
	runCmd.Flags().String("cwd", "", "working directory for kernel execution")
	runCmd.Flags().Bool("report-mode", false, "hide code cell sources in rendered views")
	runCmd.Flags().Bool("log-output", false, "mirror executed cell outputs into the log")
	runCmd.Flags().Bool("dry-run", false, "parameterize and save without executing")

	// Path injection.
	runCmd.Flags().Bool("inject-input-path", false, "pass the resolved input path as parameter NBFORGE_INPUT_PATH")
	runCmd.Flags().Bool("inject-output-path", false, "pass the resolved output path as parameter NBFORGE_OUTPUT_PATH")
	runCmd.Flags().Bool("inject-paths", false, "shorthand for --inject-input-path --inject-output-path")

	// Artifacts.
	runCmd.Flags().StringArrayP("extract", "x", nil, "cell tag to extract into a source artifact (repeatable)")
	runCmd.Flags().String("project-root", "", "source tree scanned for artifact imports")
	runCmd.Flags().String("artifact-root", "", "directory artifacts land under (default: next to the output notebook)")

	// History.
	runCmd.Flags().Bool("no-history", false, "skip recording this run")

	// Batch mode.
	runCmd.Flags().Bool("batch", false, "treat INPUT as a directory of notebooks")
	runCmd.Flags().String("output-dir", "", "output directory for batch runs")
	runCmd.Flags().Int("workers", 0, "concurrent notebooks in batch mode (default from config)")

	rootCmd.AddCommand(runCmd)
}

func runNotebook(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	st := store.New(version, cfg.HTTP, logger)

	set, err := collectParameters(cmd, st)
	if err != nil {
		return err
	}

	deps := run.Deps{
		Store:    st,
		Exec:     cfg.Execution,
		Logger:   logger,
		Progress: os.Stderr,
	}
	if hist := openHistory(cmd, cfg.History); hist != nil {
		defer hist.Close()
		deps.History = hist
	}

	opts := runOptions(cmd, cfg, set)

	if batch, _ := cmd.Flags().GetBool("batch"); batch {
		outDir, _ := cmd.Flags().GetString("output-dir")
		if outDir == "" {
			return fmt.Errorf("--batch requires --output-dir")
		}
		workers, _ := cmd.Flags().GetInt("workers")
		if workers <= 0 {
			workers = cfg.Batch.Workers
		}
		result, err := run.RunBatch(cmd.Context(), deps, args[0], outDir, opts, workers)
		if err != nil {
			return fmt.Errorf("%d of %d notebook(s) failed: %w", result.Failed, result.Total(), err)
		}
		return nil
	}

	opts.InputPath = args[0]
	if len(args) == 2 {
		opts.OutputPath = args[1]
	}
	_, err = run.Run(cmd.Context(), deps, opts)
	return err
}

// runOptions assembles the pipeline options: flags first, config values as
// fallback where both exist.
func runOptions(cmd *cobra.Command, cfg types.PipelineConfig, set *params.Set) run.Options {
	flags := cmd.Flags()

	engineName, _ := flags.GetString("engine")
	kernel, _ := flags.GetString("kernel")
	language, _ := flags.GetString("language")
	cwd, _ := flags.GetString("cwd")
	reportMode, _ := flags.GetBool("report-mode")
	logOutput, _ := flags.GetBool("log-output")
	dryRun, _ := flags.GetBool("dry-run")
	extractTags, _ := flags.GetStringArray("extract")

	injectPaths, _ := flags.GetBool("inject-paths")
	injectInput, _ := flags.GetBool("inject-input-path")
	injectOutput, _ := flags.GetBool("inject-output-path")

	projectRoot, _ := flags.GetString("project-root")
	if projectRoot == "" {
		projectRoot = cfg.Extract.ProjectRoot
	}
	artifactRoot, _ := flags.GetString("artifact-root")
	if artifactRoot == "" {
		artifactRoot = cfg.Extract.ArtifactRoot
	}

	return run.Options{
		Params:           set,
		ExtractTags:      extractTags,
		Engine:           engineName,
		KernelName:       kernel,
		Language:         language,
		CWD:              cwd,
		ReportMode:       reportMode,
		LogOutput:        logOutput,
		InjectInputPath:  injectInput || injectPaths,
		InjectOutputPath: injectOutput || injectPaths,
		DryRun:           dryRun,
		ProjectRoot:      projectRoot,
		ArtifactRoot:     artifactRoot,
	}
}

// collectParameters merges every parameter source in precedence order:
// base64, files, YAML literals, typed pairs, raw pairs. Later sources win
// and overwrites log a warning.
func collectParameters(cmd *cobra.Command, st *store.Store) (*params.Set, error) {
	flags := cmd.Flags()
	merged := params.NewSet()

	encoded, _ := flags.GetStringArray("parameter-base64")
	for _, enc := range encoded {
		data, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("decoding --parameter-base64: %w", err)
		}
		set, err := params.ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parsing --parameter-base64: %w", err)
		}
		merged.Merge(set, logger)
	}

	files, _ := flags.GetStringArray("parameter-file")
	for _, path := range files {
		set, err := st.ReadParams(cmd.Context(), path)
		if err != nil {
			return nil, err
		}
		merged.Merge(set, logger)
	}

	literals, _ := flags.GetStringArray("parameter-yaml")
	for _, doc := range literals {
		set, err := params.ParseYAML([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("parsing --parameter-yaml: %w", err)
		}
		merged.Merge(set, logger)
	}

	typed, _ := flags.GetStringArray("parameter")
	if err := mergePairs(merged, typed, "--parameter", params.ResolveValue); err != nil {
		return nil, err
	}

	raw, _ := flags.GetStringArray("parameter-raw")
	if err := mergePairs(merged, raw, "--parameter-raw", func(v string) any { return v }); err != nil {
		return nil, err
	}

	return merged, nil
}

// mergePairs folds name=value flag occurrences into the set, one at a time
// so each overwrite warns with the parameter's name.
func mergePairs(merged *params.Set, args []string, flag string, resolve func(string) any) error {
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return fmt.Errorf("%s wants name=value, got %q", flag, arg)
		}
		one := params.NewSet()
		one.Set(name, resolve(value))
		merged.Merge(one, logger)
	}
	return nil
}

// openHistory resolves and opens the run history database. Any failure
// degrades to not recording rather than blocking the run.
func openHistory(cmd *cobra.Command, cfg types.HistoryConfig) *history.Store {
	if skip, _ := cmd.Flags().GetBool("no-history"); skip || cfg.Disabled {
		return nil
	}
	path := cfg.Path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			logger.Warn("resolving history path; continuing without recording", zap.Error(err))
			return nil
		}
	}
	hist, err := history.Open(path)
	if err != nil {
		logger.Warn("opening run history; continuing without recording", zap.Error(err))
		return nil
	}
	return hist
}
