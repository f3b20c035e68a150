// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
)

// PrepareMetadata stamps the run's paths into the notebook's tool metadata
// and, in report mode, hides every code cell's source in rendered views.
func PrepareMetadata(nb *notebook.Notebook, inputPath, outputPath string, reportMode bool) {
	if reportMode {
		for _, cell := range nb.Cells {
			if cell.CellType != "code" {
				continue
			}
			if cell.Metadata == nil {
				cell.Metadata = notebook.Metadata{}
			}
			cell.Metadata.Sub("jupyter")["source_hidden"] = true
		}
	}

	meta := nb.ToolMetadata()
	meta["input_path"] = inputPath
	meta["output_path"] = outputPath
}

// LogOutputs mirrors executed cell outputs into the log: stdout streams at
// info, stderr streams at warn, rich text at info, errors at error.
func LogOutputs(nb *notebook.Notebook, logger *zap.Logger) {
	for _, cell := range nb.Cells {
		for _, output := range cell.Outputs {
			switch output.OutputType {
			case "stream":
				text := strings.TrimRight(string(output.Text), "\n")
				if text == "" {
					continue
				}
				if output.Name == "stderr" {
					logger.Warn(text)
				} else {
					logger.Info(text)
				}
			case "error":
				logger.Error(output.EName, zap.String("evalue", output.EValue))
			default:
				text := output.TextPlain()
				if text == "" {
					continue
				}
				for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
					logger.Info(line)
				}
			}
		}
	}
}
