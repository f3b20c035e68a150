// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

// RTranslator renders parameters as R source. Dicts and lists both map onto
// list(), which is what the R kernel expects for keyword data.
type RTranslator struct{}

func (RTranslator) Translate(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
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
		return rFloat(float64(v))
	case float64:
		return rFloat(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s = %s", strconv.Quote(k), RTranslator{}.Translate(v[k])))
		}
		return "list(" + strings.Join(parts, ", ") + ")"
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, RTranslator{}.Translate(item))
		}
		return "list(" + strings.Join(parts, ", ") + ")"
	case []string:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, strconv.Quote(item))
		}
		return "list(" + strings.Join(parts, ", ") + ")"
	default:
		return RTranslator{}.Translate(fmt.Sprint(v))
	}
}

func rFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Codify strips leading underscores from names: `_foo` is not assignable
// in R the way it is in Python.
func (t RTranslator) Codify(set *Set, comment string) string {
	var b strings.Builder
	b.WriteString(t.Comment(comment))
	b.WriteByte('\n')
	for _, name := range set.Names() {
		value, _ := set.Get(name)
		fmt.Fprintf(&b, "%s = %s\n", strings.TrimLeft(name, "_"), t.Translate(value))
	}
	return b.String()
}

func (RTranslator) Comment(text string) string {
	if text == "" {
		return "#"
	}
	return "# " + text
}

func (RTranslator) Inspect(*notebook.Cell) ([]types.Parameter, error) {
	return nil, fmt.Errorf("r: %w", ErrInspectUnsupported)
}
