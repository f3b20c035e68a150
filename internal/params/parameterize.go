// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
)

// Cell tags the pipeline keys on.
const (
	// ParametersTag marks the hand-written cell holding parameter defaults.
	ParametersTag = "parameters"
	// InjectedParametersTag marks the generated cell holding run values.
	InjectedParametersTag = "injected-parameters"
)

// DefaultComment heads every injected parameters cell.
const DefaultComment = "Parameters"

// MissingParameterError reports a path template placeholder that no
// parameter value fills.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q", e.Name)
}

// AddBuiltins returns a copy of set with run_uuid and current_datetime
// prepended for path templating. Caller values win over the builtins.
func AddBuiltins(set *Set, runID string, now time.Time) *Set {
	out := NewSet()
	out.Set("run_uuid", runID)
	out.Set("current_datetime", now.Format(time.RFC3339))
	if set != nil {
		for _, name := range set.Names() {
			value, _ := set.Get(name)
			out.Set(name, value)
		}
	}
	return out
}

// TemplatePath expands {name} placeholders in a path from the parameter
// set. Doubled braces escape literal ones. An unknown name is a
// MissingParameterError; unbalanced braces are a plain error.
func TemplatePath(path string, set *Set) (string, error) {
	if !strings.ContainsAny(path, "{}") {
		return path, nil
	}
	var b strings.Builder
	for i := 0; i < len(path); {
		switch path[i] {
		case '{':
			if i+1 < len(path) && path[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(path[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unbalanced '{' in path %q", path)
			}
			name := path[i+1 : i+end]
			value, ok := set.Get(name)
			if !ok {
				return "", &MissingParameterError{Name: name}
			}
			b.WriteString(templateValue(value))
			i += end + 1
		case '}':
			if i+1 < len(path) && path[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", fmt.Errorf("unbalanced '}' in path %q", path)
		default:
			b.WriteByte(path[i])
			i++
		}
	}
	return b.String(), nil
}

func templateValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}

// InjectOptions control how the injected-parameters cell is built.
type InjectOptions struct {
	Comment    string // heading comment, DefaultComment when empty
	ReportMode bool   // hide the injected source in rendered reports
	Kernel     string // kernel override, otherwise notebook metadata
	Language   string // language override, otherwise notebook metadata
}

// Parameterize injects a code cell assigning the set's values in the
// notebook's language. An existing injected-parameters cell is replaced in
// place; otherwise the new cell lands right after the first parameters
// cell, or at the top (with a warning) when the notebook has none. The
// values are also recorded under the tool's notebook metadata.
func Parameterize(nb *notebook.Notebook, set *Set, opts InjectOptions, logger *zap.Logger) error {
	tr, err := Translators.Find(resolveKernel(nb, opts.Kernel), resolveLanguage(nb, opts.Language))
	if err != nil {
		return err
	}
	comment := opts.Comment
	if comment == "" {
		comment = DefaultComment
	}

	cell := notebook.NewCodeCell(tr.Codify(set, comment))
	cell.AddTag(InjectedParametersTag)
	if opts.ReportMode {
		cell.Metadata.Sub("jupyter")["source_hidden"] = true
	}

	if at := notebook.FirstTaggedCellIndex(nb, InjectedParametersTag); at >= 0 {
		nb.Cells[at] = cell
	} else if at := notebook.FirstTaggedCellIndex(nb, ParametersTag); at >= 0 {
		rest := append([]*notebook.Cell{cell}, nb.Cells[at+1:]...)
		nb.Cells = append(nb.Cells[:at+1:at+1], rest...)
	} else {
		logger.Warn("input notebook has no cell tagged 'parameters'; injecting at the top",
			zap.String("tag", ParametersTag))
		nb.Cells = append([]*notebook.Cell{cell}, nb.Cells...)
	}

	nb.ToolMetadata()["parameters"] = set.Map()
	return nil
}
