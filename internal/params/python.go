// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

// PythonTranslator renders parameters as Python source and understands the
// `name[: type] = default  # help` grammar of parameters cells.
type PythonTranslator struct{}

func (PythonTranslator) Translate(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return pyFloat(float64(v))
	case float64:
		return pyFloat(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", strconv.Quote(k), PythonTranslator{}.Translate(v[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, PythonTranslator{}.Translate(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, strconv.Quote(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return PythonTranslator{}.Translate(fmt.Sprint(v))
	}
}

func pyFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "float('nan')"
	case math.IsInf(f, 1):
		return "float('inf')"
	case math.IsInf(f, -1):
		return "float('-inf')"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (t PythonTranslator) Codify(set *Set, comment string) string {
	var b strings.Builder
	b.WriteString(t.Comment(comment))
	b.WriteByte('\n')
	for _, name := range set.Names() {
		value, _ := set.Get(name)
		fmt.Fprintf(&b, "%s = %s\n", name, t.Translate(value))
	}
	return b.String()
}

func (PythonTranslator) Comment(text string) string {
	if text == "" {
		return "#"
	}
	return "# " + text
}

func (PythonTranslator) Inspect(cell *notebook.Cell) ([]types.Parameter, error) {
	return inspectPythonSource(string(cell.Source)), nil
}

// pyAssign matches `name = value` and `name: annotation = value` after the
// trailing comment has been stripped.
var pyAssign = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?::\s*(.+?))?\s*=\s*(.+)$`)

type pendingParam struct {
	name       string
	annotation string
	def        string
	depth      int
}

func (p *pendingParam) finish(comment string) types.Parameter {
	typeComment, help := parseTypeComment(comment)
	typ := p.annotation
	if typ == "" {
		typ = typeComment
	}
	if typ == "" {
		typ = "None"
	}
	return types.Parameter{Name: p.name, InferredType: typ, Default: p.def, Help: help}
}

// inspectPythonSource walks the cell line by line. Multi-line defaults
// (bracketed lists, dicts, calls) are accumulated with comments stripped
// and whitespace collapsed; the closing line's comment supplies the help
// text.
func inspectPythonSource(src string) []types.Parameter {
	var out []types.Parameter
	var cur *pendingParam

	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)

		if cur != nil {
			code, comment := splitHashComment(line)
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			cur.def += code
			cur.depth += bracketDelta(code)
			if cur.depth <= 0 {
				out = append(out, cur.finish(comment))
				cur = nil
			}
			continue
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		code, comment := splitHashComment(line)
		m := pyAssign.FindStringSubmatch(strings.TrimSpace(code))
		if m == nil {
			continue
		}
		name, annotation, value := m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3])
		if strings.HasPrefix(value, "=") {
			// `a == 2` is a comparison, not a parameter.
			continue
		}

		if depth := bracketDelta(value); depth > 0 {
			cur = &pendingParam{name: name, annotation: annotation, def: value, depth: depth}
			continue
		}
		p := pendingParam{name: name, annotation: annotation, def: value}
		out = append(out, p.finish(comment))
	}
	return out
}

// splitHashComment splits a line at the first # that sits outside string
// quotes. The returned comment has its leading marker and spaces removed.
func splitHashComment(line string) (code, comment string) {
	var quote rune
	escaped := false
	for i, r := range line {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			return line[:i], strings.TrimSpace(line[i+1:])
		}
	}
	return line, ""
}

// bracketDelta counts bracket nesting outside string quotes.
func bracketDelta(code string) int {
	var quote rune
	escaped := false
	depth := 0
	for _, r := range code {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(' || r == '{':
			depth++
		case r == ']' || r == ')' || r == '}':
			depth--
		}
	}
	return depth
}

// parseTypeComment splits `type: T rest...` comments into the type and the
// remaining help text; comments without the marker are all help.
func parseTypeComment(comment string) (typ, help string) {
	if rest, ok := strings.CutPrefix(comment, "type:"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return "", ""
		}
		fields := strings.SplitN(rest, " ", 2)
		typ = fields[0]
		if len(fields) == 2 {
			help = strings.TrimSpace(fields[1])
		}
		return typ, help
	}
	return "", comment
}
