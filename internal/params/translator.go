// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"errors"
	"fmt"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

// ErrInspectUnsupported is returned by translators that cannot introspect a
// parameters cell for the inspect surface.
var ErrInspectUnsupported = errors.New("parameter introspection not supported")

// Translator renders parameter values as source code for one kernel
// language.
type Translator interface {
	// Translate renders a single value as a literal.
	Translate(value any) string

	// Codify renders the whole set as an assignable cell body, headed by a
	// comment line.
	Codify(set *Set, comment string) string

	// Comment renders a comment line.
	Comment(text string) string

	// Inspect parses a parameters cell into parameter descriptions.
	Inspect(cell *notebook.Cell) ([]types.Parameter, error)
}

// Registry maps kernel and language names to translators.
type Registry struct {
	translators map[string]Translator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{translators: make(map[string]Translator)}
}

// Register binds a kernel or language name to a translator.
func (r *Registry) Register(name string, t Translator) {
	r.translators[name] = t
}

// Find resolves a translator: exact kernel name first, then language.
func (r *Registry) Find(kernelName, language string) (Translator, error) {
	if t, ok := r.translators[kernelName]; ok {
		return t, nil
	}
	if t, ok := r.translators[language]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("no translator found for kernel %q or language %q", kernelName, language)
}

// Translators is the process-wide registry with the built-in languages
// bound under their common kernel and language names.
var Translators = defaultRegistry()

func defaultRegistry() *Registry {
	r := NewRegistry()
	python := PythonTranslator{}
	r.Register("python", python)
	r.Register("python2", python)
	r.Register("python3", python)
	rlang := RTranslator{}
	r.Register("ir", rlang)
	r.Register("R", rlang)
	r.Register("r", rlang)
	bash := BashTranslator{}
	r.Register("bash", bash)
	r.Register("sh", bash)
	r.Register("shell", bash)
	return r
}

func resolveKernel(nb *notebook.Notebook, override string) string {
	if override != "" {
		return override
	}
	return nb.KernelName()
}

func resolveLanguage(nb *notebook.Notebook, override string) string {
	if override != "" {
		return override
	}
	return nb.Language()
}
