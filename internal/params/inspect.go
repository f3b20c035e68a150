// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

// Infer returns the parameters declared by the notebook's first
// parameters-tagged cell. Notebooks without one infer nothing, as do
// languages whose translator cannot introspect (those log a warning).
func Infer(nb *notebook.Notebook, kernel, language string, logger *zap.Logger) ([]types.Parameter, error) {
	at := notebook.FirstTaggedCellIndex(nb, ParametersTag)
	if at < 0 {
		return nil, nil
	}
	tr, err := Translators.Find(resolveKernel(nb, kernel), resolveLanguage(nb, language))
	if err != nil {
		return nil, err
	}
	inferred, err := tr.Inspect(nb.Cells[at])
	if errors.Is(err, ErrInspectUnsupported) {
		logger.Warn("translator does not support parameter introspection",
			zap.String("language", resolveLanguage(nb, language)))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inferred, nil
}

// WarnUnknown logs a warning for every supplied parameter the notebook does
// not declare. A notebook with no parameters cell declares nothing, so
// everything supplied warns.
func WarnUnknown(nb *notebook.Notebook, set *Set, kernel, language string, logger *zap.Logger) {
	inferred, err := Infer(nb, kernel, language, logger)
	if err != nil {
		return
	}
	declared := make(map[string]bool, len(inferred))
	for _, p := range inferred {
		declared[p.Name] = true
	}
	for _, name := range set.Names() {
		if !declared[name] {
			logger.Warn("passed unknown parameter", zap.String("name", name))
		}
	}
}

// RenderHelp writes the human-readable parameter summary for a notebook.
// It returns false when the notebook has no parameters cell at all, which
// callers surface as a non-zero exit.
func RenderHelp(w io.Writer, prettyPath string, nb *notebook.Notebook, inferred []types.Parameter) bool {
	fmt.Fprintf(w, "\nParameters inferred for notebook '%s':\n", prettyPath)
	if !notebook.AnyTaggedCell(nb, ParametersTag) {
		fmt.Fprintln(w, "\n  No cell tagged 'parameters'")
		return false
	}
	if len(inferred) == 0 {
		fmt.Fprintln(w, "\n  Can't infer anything about this notebook's parameters. It may not have any parameter defined.")
		return true
	}
	for _, p := range inferred {
		fmt.Fprintln(w, FormatParameter(p))
	}
	return true
}

// FormatParameter renders one inferred parameter. Short definitions pad out
// to a fixed help column; long ones push the help onto its own line.
func FormatParameter(p types.Parameter) string {
	typ := p.InferredType
	if typ == "None" {
		typ = "Unknown type"
	}
	definition := fmt.Sprintf("  %s: %s (default %s)", p.Name, typ, p.Default)
	if len(definition) > 30 {
		if p.Help != "" {
			return definition + "\n" + strings.Repeat(" ", 34) + p.Help
		}
		return definition
	}
	return fmt.Sprintf("%-34s%s", definition, p.Help)
}
