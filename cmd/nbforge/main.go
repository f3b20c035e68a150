// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the nbforge CLI: parameterize,
// execute, and archive Jupyter notebooks from the command line.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/nbforge/internal/engine"
	"github.com/pdiddy/nbforge/pkg/types"
)

// Set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// logger is built in PersistentPreRunE and shared by every subcommand.
var logger *zap.Logger

// rootCmd is the base command for the nbforge CLI.
var rootCmd = &cobra.Command{
	Use:   "nbforge",
	Short: "Parameterize and execute Jupyter notebooks",
	Long: `nbforge runs Jupyter notebooks as jobs: it injects parameters into a
copy of the input notebook, executes it through a kernel, scans the result
for exceptions, saves the executed document, extracts tagged cells into
standalone source artifacts, and records the run in a local history.

Notebook paths may be local files, http(s) URLs, or '-' for stdin/stdout.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Assigned here rather than in the rootCmd literal: buildLogger reads
	// rootCmd's flags, and referencing it from the literal would form an
	// initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = buildLogger()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./nbforge.yaml or ~/.nbforge/nbforge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress log output below the error level")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("nbforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".nbforge"))
		}
	}

	viper.SetDefault("execution.engine", string(types.EngineJupyter))
	viper.SetDefault("execution.image", "jupyter/minimal-notebook")
	viper.SetDefault("execution.timeout", time.Hour)
	viper.SetDefault("http.timeout", 60*time.Second)
	viper.SetDefault("http.user_agent", "nbforge/"+version)
	viper.SetDefault("batch.workers", 4)

	viper.SetEnvPrefix("NBFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildLogger constructs the process logger from --log-level and --quiet.
func buildLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}

	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)

	if quiet, _ := rootCmd.PersistentFlags().GetBool("quiet"); quiet {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	return cfg.Build()
}

// pipelineConfig assembles the stage configurations from viper, so a config
// file or NBFORGE_* environment variables can set anything a flag can.
func pipelineConfig() types.PipelineConfig {
	return types.PipelineConfig{
		HTTP: types.HTTPConfig{
			Timeout:   viper.GetDuration("http.timeout"),
			UserAgent: viper.GetString("http.user_agent"),
		},
		Execution: types.ExecutionConfig{
			Engine:    types.EngineName(viper.GetString("execution.engine")),
			Image:     viper.GetString("execution.image"),
			Kernel:    viper.GetString("execution.kernel"),
			Language:  viper.GetString("execution.language"),
			Timeout:   viper.GetDuration("execution.timeout"),
			LogOutput: viper.GetBool("execution.log_output"),
		},
		Extract: types.ExtractionConfig{
			ProjectRoot:  viper.GetString("extract.project_root"),
			ArtifactRoot: viper.GetString("extract.artifact_root"),
		},
		History: types.HistoryConfig{
			Path:     viper.GetString("history.path"),
			Disabled: viper.GetBool("history.disabled"),
		},
		Batch: types.BatchConfig{
			Workers: viper.GetInt("batch.workers"),
		},
	}
}

// exitDeadKernel is the exit status for a kernel that died mid-run, leaving
// the 128+10 convention intact for supervisors that inspect it.
const exitDeadKernel = 138

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, engine.ErrDeadKernel) {
			os.Exit(exitDeadKernel)
		}
		os.Exit(1)
	}
}
