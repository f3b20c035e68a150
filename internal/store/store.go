// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store routes notebook and parameter-file I/O through scheme-based
// handlers: plain files, http(s) endpoints, and stdin/stdout. Handlers are
// registered LIFO so callers can override a scheme; paths with no matching
// scheme fall back to the local handler.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/internal/params"
	"github.com/pdiddy/nbforge/pkg/types"
)

// Scheme prefixes for the built-in handlers. SchemeLocal is a marker, not a
// path prefix: the local handler is the fallback for plain paths.
const (
	SchemeLocal  = "local"
	SchemeStream = "-"
)

// Extension sets checked (warning only) per content kind.
var (
	notebookExtensions = []string{".ipynb", ".json"}
	sourceExtensions   = []string{".py"}
	paramExtensions    = []string{".json", ".yaml", ".yml"}
)

// Handler moves bytes in and out of one path scheme.
type Handler interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Pretty(path string) string
}

type registration struct {
	scheme  string
	handler Handler
}

// Store dispatches reads and writes to registered scheme handlers.
type Store struct {
	handlers []registration
	logger   *zap.Logger
	version  string
}

// New builds a store with the built-in handlers registered: local files,
// http(s), and the "-" stdin/stdout stream. version stamps loaded notebooks'
// tool metadata.
func New(version string, cfg types.HTTPConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger, version: version}
	s.Register(SchemeLocal, NewLocal(""))
	s.Register("http://", NewHTTP(cfg))
	s.Register("https://", NewHTTP(cfg))
	s.Register(SchemeStream, NewStream(os.Stdin, os.Stdout))
	return s
}

// Register adds a handler for a scheme prefix. Later registrations win, so
// a caller can shadow a built-in.
func (s *Store) Register(scheme string, handler Handler) {
	s.handlers = append([]registration{{scheme, handler}}, s.handlers...)
}

// handlerFor resolves the handler whose scheme prefixes the path, falling
// back to the local handler. A non-nil extension set triggers a warning
// (never an error) when the path's extension is absent or unexpected.
func (s *Store) handlerFor(path string, extensions []string) (Handler, error) {
	if len(extensions) > 0 {
		s.warnExtension(path, extensions)
	}

	var local Handler
	for _, reg := range s.handlers {
		if reg.scheme == SchemeLocal && local == nil {
			local = reg.handler
		}
		if reg.scheme != SchemeLocal && strings.HasPrefix(path, reg.scheme) {
			return reg.handler, nil
		}
	}
	if local == nil {
		return nil, fmt.Errorf("no registered scheme handler for %q", path)
	}
	return local, nil
}

func (s *Store) warnExtension(path string, extensions []string) {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if !strings.Contains(name, ".") {
		s.logger.Warn("file specified without any extension", zap.String("path", path))
		return
	}
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return
		}
	}
	s.logger.Warn("file does not end in an expected extension",
		zap.String("path", path),
		zap.Strings("expected", extensions))
}

// ReadNotebook loads, upgrades, and metadata-seeds a notebook.
func (s *Store) ReadNotebook(ctx context.Context, path string) (*notebook.Notebook, error) {
	handler, err := s.handlerFor(path, notebookExtensions)
	if err != nil {
		return nil, err
	}
	data, err := handler.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading notebook %s: %w", path, err)
	}
	nb, err := notebook.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("notebook %s: %w", path, err)
	}
	nb.Upgrade()
	nb.EnsureToolMetadata(s.version)
	return nb, nil
}

// WriteNotebook saves a notebook. An empty path means "do not save" and is
// not an error.
func (s *Store) WriteNotebook(ctx context.Context, nb *notebook.Notebook, path string) error {
	if path == "" {
		return nil
	}
	handler, err := s.handlerFor(path, notebookExtensions)
	if err != nil {
		return err
	}
	data, err := nb.Bytes()
	if err != nil {
		return err
	}
	if err := handler.Write(ctx, path, data); err != nil {
		return fmt.Errorf("writing notebook %s: %w", path, err)
	}
	return nil
}

// WriteSource saves an extracted source artifact.
func (s *Store) WriteSource(ctx context.Context, code string, path string) error {
	handler, err := s.handlerFor(path, sourceExtensions)
	if err != nil {
		return err
	}
	if err := handler.Write(ctx, path, []byte(code)); err != nil {
		return fmt.Errorf("writing source %s: %w", path, err)
	}
	return nil
}

// ReadParams loads a parameter file (YAML or JSON) through the handler for
// its scheme, preserving mapping order.
func (s *Store) ReadParams(ctx context.Context, path string) (*params.Set, error) {
	handler, err := s.handlerFor(path, paramExtensions)
	if err != nil {
		return nil, err
	}
	data, err := handler.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter file %s: %w", path, err)
	}
	set, err := params.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parameter file %s: %w", path, err)
	}
	return set, nil
}

// PrettyPath renders a path for progress output.
func (s *Store) PrettyPath(path string) string {
	if path == "" {
		return "(not saved)"
	}
	handler, err := s.handlerFor(path, nil)
	if err != nil {
		return path
	}
	return handler.Pretty(path)
}

// ListNotebooks returns the sorted .ipynb paths directly under dir.
func (s *Store) ListNotebooks(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing notebooks: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ipynb") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
