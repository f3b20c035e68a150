// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine executes parameterized notebooks through pluggable
// backends: a local jupyter installation, a container image, or no-op
// pass-through. It also owns the error-marker cells written into failed
// notebooks and the execution error raised from them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

// ErrDeadKernel reports that the kernel died before or during execution.
// The CLI maps it to exit code 138.
var ErrDeadKernel = errors.New("kernel died")

// Options are the per-run execution settings an engine receives.
type Options struct {
	// Kernel overrides the kernel recorded in the notebook.
	Kernel string

	// Cwd is the working directory for the kernel process.
	Cwd string

	// Timeout bounds a single cell's execution; 0 means unbounded.
	Timeout time.Duration

	// Image overrides the configured container image (container engine).
	Image string
}

// Engine executes a notebook and returns the executed document. Engines do
// not interpret cell outputs; error scanning happens on the result. A failed
// engine process that still produced a parseable document returns both the
// document and the error.
type Engine interface {
	Name() types.EngineName
	Execute(ctx context.Context, nb *notebook.Notebook, opts Options) (*notebook.Notebook, error)
}

// Factory builds an engine from the execution configuration.
type Factory func(cfg types.ExecutionConfig, logger *zap.Logger) (Engine, error)

// Registry maps engine names to factories.
type Registry struct {
	factories map[types.EngineName]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.EngineName]Factory)}
}

// Register binds an engine name to its factory.
func (r *Registry) Register(name types.EngineName, f Factory) {
	r.factories[name] = f
}

// New builds the named engine. Unknown names report the registered set.
func (r *Registry) New(name types.EngineName, cfg types.ExecutionConfig, logger *zap.Logger) (Engine, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (registered: %s)", name, strings.Join(r.names(), ", "))
	}
	return f(cfg, logger)
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// Engines is the process-wide registry with the built-in engines bound.
var Engines = defaultRegistry()

func defaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(types.EngineJupyter, func(_ types.ExecutionConfig, logger *zap.Logger) (Engine, error) {
		return NewJupyter(logger), nil
	})
	r.Register(types.EngineContainer, func(cfg types.ExecutionConfig, logger *zap.Logger) (Engine, error) {
		return NewContainer(cfg.Image, logger)
	})
	r.Register(types.EngineNone, func(types.ExecutionConfig, *zap.Logger) (Engine, error) {
		return None{}, nil
	})
	return r
}
