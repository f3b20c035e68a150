// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

func TestInfer(t *testing.T) {
	nb := pyNotebook(
		notebook.NewMarkdownCell("# Training"),
		taggedCell("alpha: float = 0.5 # learning rate\nepochs = 10", ParametersTag),
	)

	inferred, err := Infer(nb, "", "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []types.Parameter{
		{Name: "alpha", InferredType: "float", Default: "0.5", Help: "learning rate"},
		{Name: "epochs", InferredType: "None", Default: "10"},
	}, inferred)
}

func TestInferNoParametersCell(t *testing.T) {
	nb := pyNotebook(notebook.NewCodeCell("print('hi')"))

	inferred, err := Infer(nb, "", "", zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, inferred)
}

func TestInferUnsupportedLanguageWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	nb := &notebook.Notebook{
		Cells: []*notebook.Cell{taggedCell("foo=bar", ParametersTag)},
		Metadata: notebook.Metadata{
			"kernelspec": map[string]any{"name": "bash", "language": "bash"},
		},
	}

	inferred, err := Infer(nb, "", "", zap.New(core))
	require.NoError(t, err)
	assert.Nil(t, inferred)
	assert.Equal(t, 1, logs.FilterMessage("translator does not support parameter introspection").Len())
}

func TestWarnUnknown(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	nb := pyNotebook(taggedCell("alpha = 0.5", ParametersTag))

	WarnUnknown(nb, setOf("alpha", 1.0, "extra", "x"), "", "", zap.New(core))

	entries := logs.FilterMessage("passed unknown parameter").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "extra", entries[0].ContextMap()["name"])
}

func TestWarnUnknownWithoutParametersCell(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	nb := pyNotebook(notebook.NewCodeCell("print('hi')"))

	WarnUnknown(nb, setOf("anything", 1), "", "", zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("passed unknown parameter").Len())
}

func TestFormatParameter(t *testing.T) {
	tests := []struct {
		name  string
		param types.Parameter
		want  string
	}{
		{
			"short definition pads to the help column",
			types.Parameter{Name: "alpha", InferredType: "float", Default: "0.5", Help: "learning rate"},
			"  alpha: float (default 0.5)      learning rate",
		},
		{
			"unknown type",
			types.Parameter{Name: "b", InferredType: "None", Default: "2"},
			"  b: Unknown type (default 2)     ",
		},
		{
			"long definition pushes help to its own line",
			types.Parameter{Name: "training_corpus", InferredType: "List[str]", Default: "['a', 'b']", Help: "corpus paths"},
			"  training_corpus: List[str] (default ['a', 'b'])\n" + strings.Repeat(" ", 34) + "corpus paths",
		},
		{
			"long definition without help",
			types.Parameter{Name: "training_corpus", InferredType: "List[str]", Default: "['a', 'b']"},
			"  training_corpus: List[str] (default ['a', 'b'])",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatParameter(tt.param))
		})
	}
}

func TestRenderHelp(t *testing.T) {
	nb := pyNotebook(taggedCell("alpha: float = 0.5 # learning rate", ParametersTag))
	inferred, err := Infer(nb, "", "", zap.NewNop())
	require.NoError(t, err)

	var buf strings.Builder
	ok := RenderHelp(&buf, "~/nb.ipynb", nb, inferred)
	assert.True(t, ok)
	assert.Equal(t,
		"\nParameters inferred for notebook '~/nb.ipynb':\n"+
			"  alpha: float (default 0.5)      learning rate\n",
		buf.String())
}

func TestRenderHelpNoParametersCell(t *testing.T) {
	nb := pyNotebook(notebook.NewCodeCell("print('hi')"))

	var buf strings.Builder
	ok := RenderHelp(&buf, "nb.ipynb", nb, nil)
	assert.False(t, ok)
	assert.Equal(t,
		"\nParameters inferred for notebook 'nb.ipynb':\n"+
			"\n  No cell tagged 'parameters'\n",
		buf.String())
}

func TestRenderHelpNothingInferred(t *testing.T) {
	nb := pyNotebook(taggedCell("import os", ParametersTag))
	inferred, err := Infer(nb, "", "", zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, inferred)

	var buf strings.Builder
	ok := RenderHelp(&buf, "nb.ipynb", nb, inferred)
	assert.True(t, ok)
	assert.Contains(t, buf.String(), "Can't infer anything about this notebook's parameters.")
}
