// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local reads and writes plain files. A non-empty cwd is applied to
// relative paths, which keeps notebook-relative reads working when the
// pipeline runs from another directory.
type Local struct {
	cwd string
}

// NewLocal builds a local handler; cwd may be empty.
func NewLocal(cwd string) *Local {
	return &Local{cwd: cwd}
}

func (l *Local) resolve(path string) string {
	if l.cwd != "" && !filepath.IsAbs(path) {
		return filepath.Join(l.cwd, path)
	}
	return path
}

func (l *Local) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(l.resolve(path))
}

// Write creates parent directories as needed and lands the file through a
// temp-file rename, so readers never observe a half-written notebook.
func (l *Local) Write(_ context.Context, path string, data []byte) error {
	path = l.resolve(path)
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".nbforge-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// Pretty abbreviates a home-relative path to ~/...
func (l *Local) Pretty(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if rest, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return "~" + string(filepath.Separator) + rest
	}
	return path
}
