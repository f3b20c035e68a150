// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package params owns notebook parameters end to end: the ordered parameter
// set assembled from CLI flags and files, the per-language translators that
// turn values into kernel source, parameter-cell injection, path templating,
// and parameter inspection.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
)

// Set is an insertion-ordered parameter map. Overwriting a name keeps its
// original position, matching how injected parameter cells are expected to
// read top to bottom in the order the caller supplied them.
type Set struct {
	names  []string
	values map[string]any
}

// NewSet returns an empty parameter set.
func NewSet() *Set {
	return &Set{values: make(map[string]any)}
}

// Set stores a value, reporting whether an existing value was replaced.
func (s *Set) Set(name string, value any) bool {
	if _, exists := s.values[name]; exists {
		s.values[name] = value
		return true
	}
	s.names = append(s.names, name)
	s.values[name] = value
	return false
}

// Get returns the value for name.
func (s *Set) Get(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Has reports whether name is present.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the parameter names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return s.names
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Map returns a plain (unordered) copy of the values.
func (s *Set) Map() map[string]any {
	out := make(map[string]any, s.Len())
	for _, name := range s.Names() {
		out[name] = s.values[name]
	}
	return out
}

// Merge copies other into s in order; overwrites are logged so a parameter
// silently shadowed across sources is visible.
func (s *Set) Merge(other *Set, logger *zap.Logger) {
	for _, name := range other.Names() {
		value, _ := other.Get(name)
		if s.Set(name, value) && logger != nil {
			logger.Warn("overwriting parameter", zap.String("parameter", name))
		}
	}
}

// MarshalJSON renders the set as a JSON object in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.values[name])
		if err != nil {
			// NaN and friends have no JSON form; record their text instead.
			if val, err = json.Marshal(fmt.Sprint(s.values[name])); err != nil {
				return nil, err
			}
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ResolveValue converts a CLI-supplied parameter string to its typed form:
// True/False, None, integer and float literals, everything else a string.
func ResolveValue(value string) any {
	switch value {
	case "True":
		return true
	case "False":
		return false
	case "None":
		return nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// ParseYAML decodes a YAML (or JSON) mapping into an ordered set. Mapping
// order is preserved and timestamp-like scalars stay strings, so a
// parameter like `a_date: 2019-01-01` reaches the notebook as the literal
// text the caller wrote.
func ParseYAML(data []byte) (*Set, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing parameters: %w", err)
	}

	set := NewSet()
	if root.Kind == 0 || len(root.Content) == 0 {
		return set, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parameters must be a mapping, got %s", yamlKindName(doc.Kind))
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		set.Set(doc.Content[i].Value, nodeValue(doc.Content[i+1]))
	}
	return set, nil
}

func nodeValue(n *yaml.Node) any {
	switch n.Kind {
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out[n.Content[i].Value] = nodeValue(n.Content[i+1])
		}
		return out
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			out = append(out, nodeValue(item))
		}
		return out
	case yaml.AliasNode:
		if n.Alias != nil {
			return nodeValue(n.Alias)
		}
		return nil
	case yaml.ScalarNode:
		return scalarValue(n)
	default:
		return nil
	}
}

func scalarValue(n *yaml.Node) any {
	switch n.Tag {
	case "!!int":
		if v, err := strconv.Atoi(n.Value); err == nil {
			return v
		}
		return n.Value
	case "!!float":
		switch strings.ToLower(n.Value) {
		case ".nan":
			return math.NaN()
		case ".inf", "+.inf":
			return math.Inf(1)
		case "-.inf":
			return math.Inf(-1)
		}
		if v, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return v
		}
		return n.Value
	case "!!bool":
		return strings.EqualFold(n.Value, "true")
	case "!!null":
		return nil
	default:
		// Includes !!str and !!timestamp: dates are deliberately left as
		// the text the caller wrote.
		return n.Value
	}
}

func yamlKindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.MappingNode:
		return "a mapping"
	default:
		return "an unsupported node"
	}
}
