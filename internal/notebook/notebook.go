// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notebook implements the Jupyter nbformat v4 document model: a JSON
// codec that survives round-trips of real notebooks, the v4.5 upgrade rules,
// and the cell/tag helpers the rest of the pipeline is built on.
package notebook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Notebook is a parsed .ipynb document.
type Notebook struct {
	Cells         []*Cell  `json:"cells"`
	Metadata      Metadata `json:"metadata"`
	NBFormat      int      `json:"nbformat"`
	NBFormatMinor int      `json:"nbformat_minor"`
}

// Cell is one notebook cell. Outputs and ExecutionCount are only meaningful
// for code cells and are only serialized for them.
type Cell struct {
	ID             string         `json:"id,omitempty"`
	CellType       string         `json:"cell_type"`
	Metadata       Metadata       `json:"metadata"`
	Source         Source         `json:"source"`
	Outputs        []*Output      `json:"outputs,omitempty"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	Attachments    map[string]any `json:"attachments,omitempty"`
}

// Output is one entry of a code cell's outputs list. The fields cover the
// four nbformat output types (stream, display_data, execute_result, error).
type Output struct {
	OutputType     string         `json:"output_type"`
	Name           string         `json:"name,omitempty"`
	Text           Source         `json:"text,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	EName          string         `json:"ename,omitempty"`
	EValue         string         `json:"evalue,omitempty"`
	Traceback      []string       `json:"traceback,omitempty"`
}

// Source is cell or output text. nbformat stores it either as a single
// string or as a list of line strings; in memory it is always one string.
type Source string

func (s *Source) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = Source(one)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return fmt.Errorf("source is neither string nor string list: %w", err)
	}
	*s = Source(strings.Join(lines, ""))
	return nil
}

func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s Source) String() string { return string(s) }

// codeCellJSON and textCellJSON pin the serialized shape per cell type:
// code cells always carry execution_count and outputs (nbformat requires
// both keys), text cells carry neither.
type codeCellJSON struct {
	ID             string    `json:"id,omitempty"`
	CellType       string    `json:"cell_type"`
	ExecutionCount *int      `json:"execution_count"`
	Metadata       Metadata  `json:"metadata"`
	Outputs        []*Output `json:"outputs"`
	Source         Source    `json:"source"`
}

type textCellJSON struct {
	ID          string         `json:"id,omitempty"`
	CellType    string         `json:"cell_type"`
	Metadata    Metadata       `json:"metadata"`
	Source      Source         `json:"source"`
	Attachments map[string]any `json:"attachments,omitempty"`
}

func (c *Cell) MarshalJSON() ([]byte, error) {
	meta := c.Metadata
	if meta == nil {
		meta = Metadata{}
	}
	if c.CellType == "code" {
		outs := c.Outputs
		if outs == nil {
			outs = []*Output{}
		}
		return json.Marshal(codeCellJSON{
			ID:             c.ID,
			CellType:       c.CellType,
			ExecutionCount: c.ExecutionCount,
			Metadata:       meta,
			Outputs:        outs,
			Source:         c.Source,
		})
	}
	return json.Marshal(textCellJSON{
		ID:          c.ID,
		CellType:    c.CellType,
		Metadata:    meta,
		Source:      c.Source,
		Attachments: c.Attachments,
	})
}

// Parse decodes a notebook from its JSON bytes. Only nbformat v4 documents
// are accepted.
func Parse(data []byte) (*Notebook, error) {
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("parsing notebook: %w", err)
	}
	if nb.NBFormat != 0 && nb.NBFormat < 4 {
		return nil, fmt.Errorf("unsupported nbformat version %d (v4 required)", nb.NBFormat)
	}
	return &nb, nil
}

// Bytes serializes the notebook with the conventional two-space indent and
// a trailing newline.
func (nb *Notebook) Bytes() ([]byte, error) {
	if nb.Cells == nil {
		nb.Cells = []*Cell{}
	}
	if nb.Metadata == nil {
		nb.Metadata = Metadata{}
	}
	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		return nil, fmt.Errorf("serializing notebook: %w", err)
	}
	return append(data, '\n'), nil
}

// Upgrade normalizes the document to nbformat v4.5: version fields set,
// every cell carrying a unique ID and a materialized tags list. It is
// idempotent.
func (nb *Notebook) Upgrade() {
	nb.NBFormat = 4
	if nb.NBFormatMinor < 5 {
		nb.NBFormatMinor = 5
	}
	if nb.Metadata == nil {
		nb.Metadata = Metadata{}
	}
	seen := make(map[string]bool, len(nb.Cells))
	for _, cell := range nb.Cells {
		if cell.Metadata == nil {
			cell.Metadata = Metadata{}
		}
		if _, ok := cell.Metadata["tags"]; !ok {
			cell.Metadata["tags"] = []string{}
		}
		if cell.ID == "" || seen[cell.ID] {
			cell.ID = newCellID()
		}
		seen[cell.ID] = true
	}
}

func newCellID() string {
	return uuid.NewString()[:8]
}

// NewCodeCell builds an empty-output code cell with the given source.
func NewCodeCell(source string) *Cell {
	return &Cell{
		ID:       newCellID(),
		CellType: "code",
		Metadata: Metadata{"tags": []string{}},
		Source:   Source(source),
		Outputs:  []*Output{},
	}
}

// NewMarkdownCell builds a markdown cell with the given source.
func NewMarkdownCell(source string) *Cell {
	return &Cell{
		ID:       newCellID(),
		CellType: "markdown",
		Metadata: Metadata{"tags": []string{}},
		Source:   Source(source),
	}
}

// TextPlain returns the output's text/plain representation: the stream text
// for stream outputs, otherwise the data["text/plain"] entry (string or
// line-list) when present.
func (o *Output) TextPlain() string {
	if o.Text != "" {
		return string(o.Text)
	}
	v, ok := o.Data["text/plain"]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var b strings.Builder
		for _, line := range t {
			if s, ok := line.(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	default:
		return ""
	}
}
