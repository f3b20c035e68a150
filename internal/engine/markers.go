// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/nbforge/internal/notebook"
)

// ErrorMarkerTag marks the markdown cells this tool inserts into a failed
// notebook. Marker cells from a previous run are stripped before execution.
const ErrorMarkerTag = "nbforge-error-cell-tag"

const errorStyle = `style="color:red; font-family:Helvetica Neue, Helvetica, Arial, sans-serif; font-size:2em;"`

const errorMessageTemplate = `<span ` + errorStyle + `>An Exception was encountered at '<a href="#nbforge-error-cell">In [%s]</a>'.</span>`

const errorAnchorMsg = `<span id="nbforge-error-cell" ` + errorStyle + `>Execution using nbforge encountered an exception here and stopped:</span>`

// ExecutionError carries an exception recorded in an executed notebook's
// outputs.
type ExecutionError struct {
	CellIndex int
	ExecCount *int
	Source    string
	EName     string
	EValue    string
	Traceback []string
}

// ansiEscapes matches terminal color sequences in kernel tracebacks.
var ansiEscapes = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func (e *ExecutionError) Error() string {
	detail := ansiEscapes.ReplaceAllString(strings.Join(e.Traceback, "\n"), "")
	if detail == "" {
		detail = e.EName + ": " + e.EValue
	}
	var b strings.Builder
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", 75))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Exception encountered at \"In [%s]\":\n", execCountString(e.ExecCount))
	b.WriteString(detail)
	b.WriteByte('\n')
	return b.String()
}

func execCountString(n *int) string {
	if n == nil {
		return "None"
	}
	return strconv.Itoa(*n)
}

// RemoveErrorMarkers strips marker cells left by a previous failed run.
func RemoveErrorMarkers(nb *notebook.Notebook) {
	kept := nb.Cells[:0]
	for _, cell := range nb.Cells {
		if cell.HasTag(ErrorMarkerTag) {
			continue
		}
		kept = append(kept, cell)
	}
	nb.Cells = kept
}

// ScanForErrors returns the execution error recorded in the notebook's
// outputs, or nil. A SystemExit with empty or zero status is a clean stop,
// not an error.
func ScanForErrors(nb *notebook.Notebook) *ExecutionError {
	var found *ExecutionError
	for index, cell := range nb.Cells {
		for _, output := range cell.Outputs {
			if output.OutputType != "error" {
				continue
			}
			if output.EName == "SystemExit" && (output.EValue == "" || output.EValue == "0") {
				continue
			}
			found = &ExecutionError{
				CellIndex: index,
				ExecCount: cell.ExecutionCount,
				Source:    string(cell.Source),
				EName:     output.EName,
				EValue:    output.EValue,
				Traceback: output.Traceback,
			}
			break
		}
	}
	return found
}

// RaiseForErrors scans the executed notebook and, when a cell failed,
// inserts the marker cells (a headline at the top and an anchor right
// before the failing cell) and returns the error. Callers write the marked
// notebook out before propagating it.
func RaiseForErrors(nb *notebook.Notebook) *ExecutionError {
	execErr := ScanForErrors(nb)
	if execErr == nil {
		return nil
	}

	message := notebook.NewMarkdownCell(fmt.Sprintf(errorMessageTemplate, execCountString(execErr.ExecCount)))
	message.AddTag(ErrorMarkerTag)
	anchor := notebook.NewMarkdownCell(errorAnchorMsg)
	anchor.AddTag(ErrorMarkerTag)

	nb.Upgrade()

	// Anchor first, while the failing cell's index is still valid.
	cells := make([]*notebook.Cell, 0, len(nb.Cells)+2)
	cells = append(cells, nb.Cells[:execErr.CellIndex]...)
	cells = append(cells, anchor)
	cells = append(cells, nb.Cells[execErr.CellIndex:]...)
	nb.Cells = append([]*notebook.Cell{message}, cells...)

	return execErr
}
