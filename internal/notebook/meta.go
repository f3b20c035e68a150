// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notebook

// MetadataKey is the notebook-metadata section this tool owns.
const MetadataKey = "nbforge"

// Metadata is a free-form metadata mapping. Keys this tool does not know
// about are preserved across a parse/serialize round-trip.
type Metadata map[string]any

// Tags returns the metadata's tag list. Both []string (set by this tool)
// and []any (fresh from JSON) representations are handled.
func (m Metadata) Tags() []string {
	switch tags := m["tags"].(type) {
	case []string:
		return tags
	case []any:
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Sub returns the nested metadata map under key, creating it when absent.
// Use sub for read-only access that must not mutate the document.
func (m Metadata) Sub(key string) Metadata {
	if existing := m.sub(key); existing != nil {
		return existing
	}
	created := Metadata{}
	m[key] = created
	return created
}

func (m Metadata) sub(key string) Metadata {
	switch sub := m[key].(type) {
	case Metadata:
		return sub
	case map[string]any:
		return Metadata(sub)
	default:
		return nil
	}
}

func (m Metadata) stringAt(key string) string {
	s, _ := m[key].(string)
	return s
}

// HasTag reports whether the cell carries the given tag.
func (c *Cell) HasTag(tag string) bool {
	for _, t := range c.Metadata.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag to the cell, once.
func (c *Cell) AddTag(tag string) {
	if c.Metadata == nil {
		c.Metadata = Metadata{}
	}
	if c.HasTag(tag) {
		return
	}
	c.Metadata["tags"] = append(c.Metadata.Tags(), tag)
}

// AnyTaggedCell reports whether any cell in the notebook carries the tag.
func AnyTaggedCell(nb *Notebook, tag string) bool {
	return FirstTaggedCellIndex(nb, tag) >= 0
}

// FirstTaggedCellIndex returns the index of the first cell carrying the
// tag, or -1 when no cell does.
func FirstTaggedCellIndex(nb *Notebook, tag string) int {
	for i, cell := range nb.Cells {
		if cell.HasTag(tag) {
			return i
		}
	}
	return -1
}

// KernelName returns metadata.kernelspec.name, or "" when absent.
func (nb *Notebook) KernelName() string {
	return nb.Metadata.sub("kernelspec").stringAt("name")
}

// Language returns metadata.kernelspec.language, falling back to
// metadata.language_info.name, or "" when neither is present.
func (nb *Notebook) Language() string {
	if lang := nb.Metadata.sub("kernelspec").stringAt("language"); lang != "" {
		return lang
	}
	return nb.Metadata.sub("language_info").stringAt("name")
}

// EnsureToolMetadata seeds the tool's metadata section the way loading has
// always done: version stamped, parameter and environment maps present.
func (nb *Notebook) EnsureToolMetadata(version string) {
	if nb.Metadata == nil {
		nb.Metadata = Metadata{}
	}
	section := nb.Metadata.Sub(MetadataKey)
	if _, ok := section["version"]; !ok {
		section["version"] = version
	}
	for _, key := range []string{"default_parameters", "parameters", "environment_variables"} {
		if _, ok := section[key]; !ok {
			section[key] = map[string]any{}
		}
	}
}

// ToolMetadata returns the tool's metadata section, creating it when absent.
func (nb *Notebook) ToolMetadata() Metadata {
	if nb.Metadata == nil {
		nb.Metadata = Metadata{}
	}
	return nb.Metadata.Sub(MetadataKey)
}
