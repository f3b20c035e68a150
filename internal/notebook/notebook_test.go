// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notebook

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleNotebook = `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": 1,
   "metadata": {"tags": ["parameters"]},
   "outputs": [],
   "source": ["msg = \"hello\"\n", "n = 3"]
  },
  {
   "cell_type": "code",
   "execution_count": 2,
   "metadata": {"collapsed": false},
   "outputs": [
    {"output_type": "stream", "name": "stdout", "text": ["hello\n"]}
   ],
   "source": "print(msg)"
  },
  {
   "cell_type": "markdown",
   "metadata": {},
   "source": "## Results"
  }
 ],
 "metadata": {
  "kernelspec": {"display_name": "Python 3", "language": "python", "name": "python3"},
  "language_info": {"name": "python", "version": "3.8.10"}
 },
 "nbformat": 4,
 "nbformat_minor": 4
}`

func mustParse(t *testing.T, data string) *Notebook {
	t.Helper()
	nb, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return nb
}

func TestParseJoinsSourceLines(t *testing.T) {
	nb := mustParse(t, sampleNotebook)
	if got, want := string(nb.Cells[0].Source), "msg = \"hello\"\nn = 3"; got != want {
		t.Errorf("source = %q, want %q", got, want)
	}
	if got, want := string(nb.Cells[1].Source), "print(msg)"; got != want {
		t.Errorf("source = %q, want %q", got, want)
	}
}

func TestParseRejectsOldFormat(t *testing.T) {
	if _, err := Parse([]byte(`{"nbformat": 3, "cells": []}`)); err == nil {
		t.Fatal("expected error for nbformat 3")
	}
}

func TestRoundTripPreservesDocument(t *testing.T) {
	nb := mustParse(t, sampleNotebook)
	data, err := nb.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("serialized notebook missing trailing newline")
	}

	again := mustParse(t, string(data))
	if len(again.Cells) != 3 {
		t.Fatalf("cells = %d, want 3", len(again.Cells))
	}
	if got := string(again.Cells[1].Outputs[0].Text); got != "hello\n" {
		t.Errorf("output text = %q, want %q", got, "hello\n")
	}
	if v, ok := again.Cells[1].Metadata["collapsed"]; !ok || v != false {
		t.Errorf("unknown metadata key dropped on round-trip: %v", v)
	}
	if again.KernelName() != "python3" {
		t.Errorf("kernel = %q after round-trip", again.KernelName())
	}
}

func TestCodeCellSerializesRequiredKeys(t *testing.T) {
	cell := NewCodeCell("x = 1")
	data, err := json.Marshal(cell)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["outputs"]; !ok {
		t.Error("code cell missing outputs key")
	}
	if v, ok := m["execution_count"]; !ok || v != nil {
		t.Errorf("execution_count = %v, want explicit null", v)
	}
}

func TestMarkdownCellOmitsCodeKeys(t *testing.T) {
	cell := NewMarkdownCell("# Title")
	data, err := json.Marshal(cell)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"outputs", "execution_count"} {
		if _, ok := m[key]; ok {
			t.Errorf("markdown cell carries %q", key)
		}
	}
}

func TestUpgrade(t *testing.T) {
	nb := mustParse(t, sampleNotebook)
	nb.Upgrade()

	if nb.NBFormat != 4 || nb.NBFormatMinor != 5 {
		t.Errorf("version = %d.%d, want 4.5", nb.NBFormat, nb.NBFormatMinor)
	}
	seen := map[string]bool{}
	for i, cell := range nb.Cells {
		if cell.ID == "" {
			t.Errorf("cell %d has no id", i)
		}
		if seen[cell.ID] {
			t.Errorf("duplicate cell id %q", cell.ID)
		}
		seen[cell.ID] = true
		if _, ok := cell.Metadata["tags"]; !ok {
			t.Errorf("cell %d tags not materialized", i)
		}
	}

	// Idempotence: a second upgrade must not reassign ids.
	ids := []string{nb.Cells[0].ID, nb.Cells[1].ID, nb.Cells[2].ID}
	nb.Upgrade()
	for i, cell := range nb.Cells {
		if cell.ID != ids[i] {
			t.Errorf("cell %d id changed on second upgrade", i)
		}
	}
}

func TestTaggedCellLookup(t *testing.T) {
	nb := mustParse(t, sampleNotebook)

	tests := []struct {
		tag  string
		want int
	}{
		{"parameters", 0},
		{"tag", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := FirstTaggedCellIndex(nb, tt.tag); got != tt.want {
			t.Errorf("FirstTaggedCellIndex(%q) = %d, want %d", tt.tag, got, tt.want)
		}
	}

	if !AnyTaggedCell(nb, "parameters") {
		t.Error("AnyTaggedCell(parameters) = false")
	}
	if AnyTaggedCell(nb, "injected-parameters") {
		t.Error("AnyTaggedCell(injected-parameters) = true for untouched notebook")
	}
}

func TestAddTag(t *testing.T) {
	cell := NewCodeCell("pass")
	cell.AddTag("model")
	cell.AddTag("model")
	if got := cell.Metadata.Tags(); len(got) != 1 || got[0] != "model" {
		t.Errorf("tags = %v, want [model]", got)
	}
}

func TestKernelAndLanguage(t *testing.T) {
	nb := mustParse(t, sampleNotebook)
	if got := nb.KernelName(); got != "python3" {
		t.Errorf("KernelName = %q, want python3", got)
	}
	if got := nb.Language(); got != "python" {
		t.Errorf("Language = %q, want python", got)
	}

	bare := &Notebook{Metadata: Metadata{}}
	if got := bare.KernelName(); got != "" {
		t.Errorf("KernelName on bare notebook = %q", got)
	}
	if _, ok := bare.Metadata["kernelspec"]; ok {
		t.Error("reading kernel name materialized kernelspec metadata")
	}
}

func TestLanguageFallsBackToLanguageInfo(t *testing.T) {
	nb := &Notebook{Metadata: Metadata{
		"language_info": map[string]any{"name": "R"},
	}}
	if got := nb.Language(); got != "R" {
		t.Errorf("Language = %q, want R", got)
	}
}

func TestEnsureToolMetadata(t *testing.T) {
	nb := mustParse(t, sampleNotebook)
	nb.EnsureToolMetadata("0.1.0")

	section := nb.Metadata.Sub(MetadataKey)
	if section["version"] != "0.1.0" {
		t.Errorf("version = %v", section["version"])
	}
	for _, key := range []string{"default_parameters", "parameters", "environment_variables"} {
		if _, ok := section[key]; !ok {
			t.Errorf("missing seeded key %q", key)
		}
	}

	// Seeding again must not clobber an existing version.
	nb.EnsureToolMetadata("9.9.9")
	if section["version"] != "0.1.0" {
		t.Error("second seeding overwrote version")
	}
}

func TestOutputTextPlain(t *testing.T) {
	tests := []struct {
		name string
		out  Output
		want string
	}{
		{"stream", Output{OutputType: "stream", Text: "hello\n"}, "hello\n"},
		{
			"data string",
			Output{OutputType: "execute_result", Data: map[string]any{"text/plain": "42"}},
			"42",
		},
		{
			"data lines",
			Output{OutputType: "display_data", Data: map[string]any{"text/plain": []any{"a\n", "b"}}},
			"a\nb",
		},
		{"no text", Output{OutputType: "display_data", Data: map[string]any{"image/png": "..."}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out.TextPlain(); got != tt.want {
				t.Errorf("TextPlain = %q, want %q", got, tt.want)
			}
		})
	}
}
