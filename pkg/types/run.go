// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the terminal state of a recorded notebook run.
type RunStatus string

const (
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
	RunDeadKernel RunStatus = "dead-kernel"
)

// Run is one recorded notebook execution.
type Run struct {
	// ID is the run UUID; it also names the artifact directory.
	ID string `json:"id" yaml:"id"`

	// InputPath is the resolved (templated) input notebook location.
	InputPath string `json:"input_path" yaml:"input_path"`

	// OutputPath is the resolved output notebook location, if any.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	// Engine, Kernel and Language describe how the notebook was executed.
	Engine   string `json:"engine" yaml:"engine"`
	Kernel   string `json:"kernel,omitempty" yaml:"kernel,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Parameters is the injected parameter set as a JSON object, in
	// injection order.
	Parameters string `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// ExtractTags lists the cell tags extracted into artifacts.
	ExtractTags []string `json:"extract_tags,omitempty" yaml:"extract_tags,omitempty"`

	// ArtifactDir is where extracted sources were written, if any.
	ArtifactDir string `json:"artifact_dir,omitempty" yaml:"artifact_dir,omitempty"`

	// Status records the run outcome.
	Status RunStatus `json:"status" yaml:"status"`

	// Error holds the rendered failure when Status is not succeeded.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Parameter is one inferred notebook parameter from the cell tagged
// "parameters": its name, best-effort type, default expression, and help
// text from the trailing comment.
type Parameter struct {
	Name         string `json:"name" yaml:"name"`
	InferredType string `json:"inferred_type_name" yaml:"inferred_type_name"`
	Default      string `json:"default" yaml:"default"`
	Help         string `json:"help" yaml:"help"`
}
