// Package extract turns tagged notebook cells into standalone Python
// artifacts: one function per tag, cell-level imports hoisted into a sorted
// module block, never-bound names stubbed, whitespace normalized to the
// target project's style profile, and project-local imports copied next to
// the generated files.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/internal/store"
)

// Extractor writes artifacts through the store so remote artifact roots work
// the same way notebook paths do.
type Extractor struct {
	store  *store.Store
	logger *zap.Logger
}

func New(st *store.Store, logger *zap.Logger) *Extractor {
	return &Extractor{store: st, logger: logger}
}

// Options select what to extract and where artifacts land.
type Options struct {
	Tags        []string
	RunID       string
	Root        string
	ProjectRoot string
}

// Buffers assembles one function per requested tag: a `def <tag>():` header
// followed by each tagged code cell's source indented one level, in cell
// order. Tags matching no code cell get no buffer.
func Buffers(nb *notebook.Notebook, tags []string) map[string]string {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	buffers := map[string]string{}
	for _, cell := range nb.Cells {
		if cell.CellType != "code" {
			continue
		}
		for _, tag := range cell.Metadata.Tags() {
			if !want[tag] {
				continue
			}
			if _, ok := buffers[tag]; !ok {
				buffers[tag] = "def " + tag + "():"
			}
			src := "\n" + cell.Source.String()
			buffers[tag] += strings.ReplaceAll(src, "\n", "\n\t") + "\n"
		}
	}
	return buffers
}

// Extract writes one .py artifact per tag into <root>/<run id>/, plus any
// project files the artifacts import. It returns the artifact directory, or
// "" when nothing was written. The notebook is never modified.
func (e *Extractor) Extract(ctx context.Context, nb *notebook.Notebook, opts Options) (string, error) {
	if len(opts.Tags) == 0 {
		return "", nil
	}
	profile, err := LoadProfile(opts.ProjectRoot)
	if err != nil {
		return "", err
	}
	var pfiles []string
	if opts.ProjectRoot == "" {
		e.logger.Info("no project root configured; skipping project import resolution")
	} else if pfiles, err = listProjectFiles(opts.ProjectRoot); err != nil {
		return "", fmt.Errorf("scanning project root: %w", err)
	}
	firstParty := func(im importLine) bool {
		return profile.firstParty(im.module) ||
			len(matchModuleFiles(opts.ProjectRoot, pfiles, im.module)) > 0
	}

	buffers := Buffers(nb, opts.Tags)
	dir := filepath.Join(opts.Root, opts.RunID)
	written := 0
	copied := map[string]bool{}
	done := map[string]bool{}
	for _, tag := range opts.Tags {
		if done[tag] {
			continue
		}
		done[tag] = true
		buf, ok := buffers[tag]
		if !ok {
			e.logger.Warn("no code cell carries extract tag", zap.String("tag", tag))
			continue
		}
		code := e.render(tag, buf, profile, firstParty)
		if err := e.store.WriteSource(ctx, code, filepath.Join(dir, tag+".py")); err != nil {
			return "", fmt.Errorf("writing artifact %q: %w", tag, err)
		}
		written++

		for _, src := range e.resolveProjectImports(code, opts.ProjectRoot, pfiles) {
			if copied[src] {
				continue
			}
			copied[src] = true
			data, err := os.ReadFile(src)
			if err != nil {
				return "", fmt.Errorf("copying project import: %w", err)
			}
			dst := filepath.Join(dir, filepath.Base(src))
			if err := e.store.WriteSource(ctx, string(data), dst); err != nil {
				return "", fmt.Errorf("copying project import %s: %w", filepath.Base(src), err)
			}
			e.logger.Debug("copied project import", zap.String("file", src))
		}
	}
	if written == 0 {
		return "", nil
	}
	e.logger.Info("generated artifacts",
		zap.String("dir", dir),
		zap.Int("artifacts", written),
		zap.Int("project_files", len(copied)))
	return dir, nil
}

// render runs the formatting pipeline over a raw buffer: hoist cell-level
// imports into a module-level block, stub never-bound names, normalize
// whitespace per the style profile.
func (e *Extractor) render(tag, buffer string, profile Profile, firstParty func(importLine) bool) string {
	imports, body := hoistImports(buffer)
	importBlock := sortImportBlock(imports, firstParty)
	body = strings.TrimRight(body, "\n")

	var stubs []string
	for _, name := range missingNames(joinBlocks(importBlock, body)) {
		e.logger.Info("stubbing unbound name",
			zap.String("tag", tag), zap.String("name", name))
		stubs = append(stubs, name+" = None")
	}

	full := joinBlocks(strings.Join(stubs, "\n"), importBlock, body)
	return e.normalize(tag, full, profile)
}

// joinBlocks joins non-empty blocks with two blank lines.
func joinBlocks(blocks ...string) string {
	kept := blocks[:0:0]
	for _, b := range blocks {
		if b != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n\n")
}

// normalize expands tab indentation to four spaces, strips trailing
// whitespace, collapses runs of more than two blank lines and guarantees a
// single trailing newline. Overlong lines are reported, not rewrapped.
func (e *Extractor) normalize(tag, code string, profile Profile) string {
	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for n, line := range lines {
		line = strings.TrimRight(expandLeadingTabs(line), " \t")
		if line == "" {
			if blanks++; blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		if len(line) > profile.LineLength {
			e.logger.Debug("artifact line exceeds configured length",
				zap.String("tag", tag), zap.Int("line", n+1), zap.Int("width", len(line)))
		}
		out = append(out, line)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
}

func expandLeadingTabs(line string) string {
	i := 0
	for i < len(line) && line[i] == '\t' {
		i++
	}
	if i == 0 {
		return line
	}
	return strings.Repeat("    ", i) + line[i:]
}

// resolveProjectImports maps code's non-stdlib imports onto project files.
// Plain imports match by module path; from-imports additionally require the
// file to mention one of the imported names.
func (e *Extractor) resolveProjectImports(code, root string, files []string) []string {
	if root == "" || len(files) == 0 {
		return nil
	}
	matched := map[string]bool{}
	for _, im := range allImportLines(code) {
		if strings.HasPrefix(im.module, ".") || pyStdlib[moduleRoot(im.module)] {
			continue
		}
		for _, f := range matchModuleFiles(root, files, im.module) {
			if im.from && len(im.names) > 0 {
				data, err := os.ReadFile(f)
				if err != nil {
					e.logger.Debug("unreadable project file",
						zap.String("file", f), zap.Error(err))
					continue
				}
				if !containsAny(string(data), im.names) {
					continue
				}
			}
			matched[f] = true
		}
	}
	out := make([]string, 0, len(matched))
	for f := range matched {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func containsAny(content string, names []string) bool {
	for _, n := range names {
		if strings.Contains(content, n) {
			return true
		}
	}
	return false
}
