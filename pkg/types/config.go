package types

import "time"

// HTTPConfig holds shared HTTP settings used by remote notebook I/O.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "nbforge/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// EngineName identifies the notebook execution engine.
type EngineName string

const (
	EngineJupyter   EngineName = "jupyter"
	EngineContainer EngineName = "container"
	EngineNone      EngineName = "none"
)

// ExecutionConfig holds settings for the execution stage.
type ExecutionConfig struct {
	// Engine selects the execution engine: jupyter, container, or none.
	Engine EngineName `json:"engine" yaml:"engine"`

	// Image is the container image used by the container engine
	// (default "jupyter/minimal-notebook").
	Image string `json:"image" yaml:"image"`

	// Kernel overrides the kernel name recorded in the notebook.
	Kernel string `json:"kernel,omitempty" yaml:"kernel,omitempty"`

	// Language overrides the language recorded in the notebook.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Timeout bounds a single notebook execution (default 1h; 0 means none).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// LogOutput mirrors executed cell outputs into the structured log.
	LogOutput bool `json:"log_output" yaml:"log_output"`
}

// ExtractionConfig holds settings for artifact extraction.
type ExtractionConfig struct {
	// ProjectRoot is the source tree searched for project-local imports.
	ProjectRoot string `json:"project_root,omitempty" yaml:"project_root,omitempty"`

	// ArtifactRoot is the directory artifacts are written under; when empty
	// artifacts land next to the output notebook.
	ArtifactRoot string `json:"artifact_root,omitempty" yaml:"artifact_root,omitempty"`
}

// HistoryConfig holds settings for the run history database.
type HistoryConfig struct {
	// Path is the SQLite database location (default ~/.nbforge/history.db).
	Path string `json:"path" yaml:"path"`

	// Disabled turns off run recording entirely.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// BatchConfig holds settings for directory-wide runs.
type BatchConfig struct {
	// Workers is the number of notebooks executed concurrently (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	HTTP      HTTPConfig       `json:"http" yaml:"http"`
	Execution ExecutionConfig  `json:"execution" yaml:"execution"`
	Extract   ExtractionConfig `json:"extract" yaml:"extract"`
	History   HistoryConfig    `json:"history" yaml:"history"`
	Batch     BatchConfig      `json:"batch" yaml:"batch"`
}
