// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// importLine is one single-line import statement lifted out of a buffer.
// Combined plain imports (`import os, sys`) are split into one line each;
// from-imports keep their source names for project-file matching.
type importLine struct {
	module string
	names  []string
	from   bool
	raw    string
}

// parseImportLines parses stmt as a single-line import statement. Multi-line
// continuations and anything that does not look like an import are rejected
// so they stay in the function body untouched.
func parseImportLines(stmt string) ([]importLine, bool) {
	s := strings.TrimSpace(stmt)
	isFrom := strings.HasPrefix(s, "from ")
	if !isFrom && !strings.HasPrefix(s, "import ") {
		return nil, false
	}
	if strings.HasSuffix(s, "\\") || strings.ContainsRune(s, ';') ||
		strings.Count(s, "(") != strings.Count(s, ")") {
		return nil, false
	}

	if isFrom {
		mod, names, ok := strings.Cut(strings.TrimSpace(s[len("from "):]), " import ")
		if !ok {
			return nil, false
		}
		module := strings.TrimSpace(mod)
		if !validModule(module) {
			return nil, false
		}
		im := importLine{module: module, from: true, raw: s}
		if i := strings.IndexByte(names, '#'); i >= 0 {
			names = names[:i]
		}
		for _, n := range strings.Split(strings.Trim(names, "() \t"), ",") {
			n = strings.TrimSpace(n)
			if src, _, aliased := strings.Cut(n, " as "); aliased {
				n = strings.TrimSpace(src)
			}
			if n != "" && n != "*" {
				im.names = append(im.names, n)
			}
		}
		return []importLine{im}, true
	}

	rest := s[len("import "):]
	if strings.ContainsRune(rest, '#') {
		// keep commented imports whole rather than guessing how to split
		module := rest
		if i := strings.IndexByte(module, '#'); i >= 0 {
			module = module[:i]
		}
		module, _, _ = strings.Cut(strings.TrimSpace(module), " ")
		if !validModule(module) {
			return nil, false
		}
		return []importLine{{module: module, raw: s}}, true
	}
	var out []importLine
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		module := part
		if src, _, aliased := strings.Cut(part, " as "); aliased {
			module = strings.TrimSpace(src)
		}
		if !validModule(module) {
			return nil, false
		}
		out = append(out, importLine{module: module, raw: "import " + part})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func validModule(m string) bool {
	if m == "" {
		return false
	}
	for _, r := range m {
		if r != '.' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func moduleRoot(module string) string {
	root, _, _ := strings.Cut(strings.TrimLeft(module, "."), ".")
	return root
}

// hoistImports removes cell-level import lines from a buffer body. Only
// lines indented exactly one tab qualify; imports nested under conditionals
// or try blocks keep their position and meaning.
func hoistImports(body string) ([]importLine, string) {
	lines := strings.Split(body, "\n")
	var imports []importLine
	rest := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) > 1 && line[0] == '\t' && line[1] != ' ' && line[1] != '\t' {
			if ims, ok := parseImportLines(line[1:]); ok {
				imports = append(imports, ims...)
				continue
			}
		}
		rest = append(rest, line)
	}
	return imports, strings.Join(rest, "\n")
}

// sortImportBlock renders imports grouped stdlib, third-party, first-party,
// one blank line between groups, sorted by module with plain imports ahead
// of from-imports of the same module. Duplicates collapse.
func sortImportBlock(imports []importLine, firstParty func(importLine) bool) string {
	if len(imports) == 0 {
		return ""
	}
	seen := map[string]bool{}
	groups := make([][]importLine, 3)
	for _, im := range imports {
		if seen[im.raw] {
			continue
		}
		seen[im.raw] = true
		g := 1
		switch {
		case strings.HasPrefix(im.module, "."):
			g = 2
		case pyStdlib[moduleRoot(im.module)]:
			g = 0
		case firstParty(im):
			g = 2
		}
		groups[g] = append(groups[g], im)
	}
	var blocks []string
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		sort.Slice(g, func(i, j int) bool {
			a, b := g[i], g[j]
			if a.module != b.module {
				return a.module < b.module
			}
			if a.from != b.from {
				return !a.from
			}
			return a.raw < b.raw
		})
		lines := make([]string, len(g))
		for i, im := range g {
			lines[i] = im.raw
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// allImportLines parses every import statement in code, at any indentation.
func allImportLines(code string) []importLine {
	var out []importLine
	for _, line := range strings.Split(code, "\n") {
		if ims, ok := parseImportLines(line); ok {
			out = append(out, ims...)
		}
	}
	return out
}

// listProjectFiles walks root for .py files, skipping virtualenvs and
// hidden directories.
func listProjectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (name == "venv" || name == ".venv" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".py") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchModuleFiles returns the project files that implement module: either
// <module path>.py or a package __init__.py, at any depth under root.
func matchModuleFiles(root string, files []string, module string) []string {
	p := strings.ReplaceAll(strings.TrimLeft(module, "."), ".", "/")
	if p == "" {
		return nil
	}
	var out []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if rel == p+".py" || rel == p+"/__init__.py" ||
			strings.HasSuffix(rel, "/"+p+".py") || strings.HasSuffix(rel, "/"+p+"/__init__.py") {
			out = append(out, f)
		}
	}
	return out
}
