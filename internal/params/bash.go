// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

// BashTranslator renders parameters as shell assignments. Values are quoted
// the way shlex does it: safe words pass through, anything else is wrapped
// in single quotes with embedded quotes escaped.
type BashTranslator struct{}

func (BashTranslator) Translate(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return shQuote(v)
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
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return shQuote(fmt.Sprint(v))
	}
}

func (t BashTranslator) Codify(set *Set, comment string) string {
	var b strings.Builder
	b.WriteString(t.Comment(comment))
	b.WriteByte('\n')
	for _, name := range set.Names() {
		value, _ := set.Get(name)
		fmt.Fprintf(&b, "%s=%s\n", name, t.Translate(value))
	}
	return b.String()
}

func (BashTranslator) Comment(text string) string {
	if text == "" {
		return "#"
	}
	return "# " + text
}

func (BashTranslator) Inspect(*notebook.Cell) ([]types.Parameter, error) {
	return nil, fmt.Errorf("bash: %w", ErrInspectUnsupported)
}

// shQuote quotes a string for a POSIX shell. Words made of unambiguous
// characters pass through untouched; everything else is single-quoted with
// each embedded quote spliced out as '"'"'.
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func shSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_@%+=:,./-", r):
		default:
			return false
		}
	}
	return true
}
