// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/nbforge/internal/httputil"
	"github.com/pdiddy/nbforge/pkg/types"
)

const minimalNotebook = `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "outputs": [],
   "source": "x = 1"
  }
 ],
 "metadata": {
  "kernelspec": {"name": "python3", "language": "python", "display_name": "Python 3"}
 },
 "nbformat": 4,
 "nbformat_minor": 4
}
`

func testStore(t *testing.T) *Store {
	t.Helper()
	return New("0.0.0-test", types.HTTPConfig{}, zap.NewNop())
}

type memHandler struct {
	files map[string][]byte
	reads int
}

func newMemHandler() *memHandler {
	return &memHandler{files: make(map[string][]byte)}
}

func (m *memHandler) Read(_ context.Context, path string) ([]byte, error) {
	m.reads++
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("not found: %s", path)
	}
	return data, nil
}

func (m *memHandler) Write(_ context.Context, path string, data []byte) error {
	m.files[path] = data
	return nil
}

func (m *memHandler) Pretty(path string) string { return path }

func TestRegisterRoutesByScheme(t *testing.T) {
	s := testStore(t)
	mem := newMemHandler()
	mem.files["memory://nb.ipynb"] = []byte(minimalNotebook)
	s.Register("memory://", mem)

	nb, err := s.ReadNotebook(context.Background(), "memory://nb.ipynb")
	require.NoError(t, err)
	assert.Equal(t, 1, mem.reads)
	require.Len(t, nb.Cells, 1)
}

func TestRegisterLaterRegistrationWins(t *testing.T) {
	s := testStore(t)
	first := newMemHandler()
	second := newMemHandler()
	second.files["memory://nb.ipynb"] = []byte(minimalNotebook)
	s.Register("memory://", first)
	s.Register("memory://", second)

	_, err := s.ReadNotebook(context.Background(), "memory://nb.ipynb")
	require.NoError(t, err)
	assert.Equal(t, 0, first.reads, "shadowed handler must not be consulted")
	assert.Equal(t, 1, second.reads)
}

func TestExtensionWarnings(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantMsg  string
		wantNone bool
	}{
		{"no extension", "notebooks/final", "file specified without any extension", false},
		{"wrong extension", "notebooks/final.txt", "file does not end in an expected extension", false},
		{"expected extension", "notebooks/final.ipynb", "", true},
		{"query string ignored", "https://host/nb.ipynb?rev=2", "", true},
		{"query string on bare name", "https://host/nb?rev=2", "file specified without any extension", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			s := New("0.0.0-test", types.HTTPConfig{}, zap.New(core))

			s.warnExtension(tt.path, notebookExtensions)
			if tt.wantNone {
				assert.Equal(t, 0, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.wantMsg, logs.All()[0].Message)
		})
	}
}

func TestLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := testStore(t)
	path := filepath.Join(dir, "deep", "nested", "out.ipynb")

	nb, err := s.ReadNotebook(context.Background(), writeFixture(t, dir))
	require.NoError(t, err)
	require.NoError(t, s.WriteNotebook(context.Background(), nb, path))

	again, err := s.ReadNotebook(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, again.Cells, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "in.ipynb")
	require.NoError(t, os.WriteFile(path, []byte(minimalNotebook), 0o644))
	return path
}

func TestLocalResolvesAgainstCwd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nb.ipynb"), []byte("data"), 0o644))

	l := NewLocal(dir)
	data, err := l.Read(context.Background(), "nb.ipynb")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestLocalPretty(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	l := NewLocal("")
	assert.Equal(t, filepath.Join("~", "runs", "out.ipynb"), l.Pretty(filepath.Join(home, "runs", "out.ipynb")))
	assert.Equal(t, "/tmp/out.ipynb", l.Pretty("/tmp/out.ipynb"))
}

func TestStreamRoundTrip(t *testing.T) {
	var out bytes.Buffer
	h := NewStream(bytes.NewBufferString(minimalNotebook), &out)

	data, err := h.Read(context.Background(), "-")
	require.NoError(t, err)
	assert.Equal(t, minimalNotebook, string(data))

	require.NoError(t, h.Write(context.Background(), "-", []byte("rendered")))
	assert.Equal(t, "rendered", out.String())
}

func TestStoreRoutesDashToStream(t *testing.T) {
	var out bytes.Buffer
	s := testStore(t)
	s.Register(SchemeStream, NewStream(bytes.NewBufferString(minimalNotebook), &out))

	nb, err := s.ReadNotebook(context.Background(), "-")
	require.NoError(t, err)
	require.NoError(t, s.WriteNotebook(context.Background(), nb, "-"))
	assert.Contains(t, out.String(), `"nbformat": 4`)
}

func TestHTTPRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, minimalNotebook)
	}))
	defer srv.Close()

	s := testStore(t)
	nb, err := s.ReadNotebook(context.Background(), srv.URL+"/nb.ipynb")
	require.NoError(t, err)
	assert.Len(t, nb.Cells, 1)
}

func TestHTTPReadRetriesOn429(t *testing.T) {
	old := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	t.Cleanup(func() { httputil.RetryBaseDelay = old })

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, minimalNotebook)
	}))
	defer srv.Close()

	h := NewHTTP(types.HTTPConfig{})
	data, err := h.Read(context.Background(), srv.URL+"/nb.ipynb")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Contains(t, string(data), `"nbformat"`)
}

func TestHTTPReadNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	h := NewHTTP(types.HTTPConfig{})
	_, err := h.Read(context.Background(), srv.URL+"/nb.ipynb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPWrite(t *testing.T) {
	var gotBody []byte
	var gotMethod, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		gotBody = buf.Bytes()
	}))
	defer srv.Close()

	h := NewHTTP(types.HTTPConfig{UserAgent: "nbforge-test"})
	require.NoError(t, h.Write(context.Background(), srv.URL+"/nb.ipynb", []byte(`{"ok":1}`)))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, `{"ok":1}`, string(gotBody))
}

func TestReadNotebookUpgradesAndSeeds(t *testing.T) {
	dir := t.TempDir()
	s := testStore(t)

	nb, err := s.ReadNotebook(context.Background(), writeFixture(t, dir))
	require.NoError(t, err)

	assert.Equal(t, 4, nb.NBFormat)
	assert.Equal(t, 5, nb.NBFormatMinor)
	assert.NotEmpty(t, nb.Cells[0].ID, "upgrade assigns cell IDs")

	section := nb.ToolMetadata()
	assert.Equal(t, "0.0.0-test", section["version"])
	assert.Contains(t, section, "parameters")
	assert.Contains(t, section, "environment_variables")
}

func TestReadNotebookRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.ipynb")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := testStore(t).ReadNotebook(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.ipynb")
}

func TestWriteNotebookEmptyPathIsNoop(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.WriteNotebook(context.Background(), nil, ""))
}

func TestReadParamsKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zulu: 1\nalpha: two\n"), 0o644))

	set, err := testStore(t).ReadParams(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zulu", "alpha"}, set.Names())
}

func TestPrettyPath(t *testing.T) {
	s := testStore(t)
	assert.Equal(t, "(not saved)", s.PrettyPath(""))
	assert.Equal(t, "https://host/nb.ipynb", s.PrettyPath("https://host/nb.ipynb"))
}

func TestWriteSource(t *testing.T) {
	dir := t.TempDir()
	s := testStore(t)
	path := filepath.Join(dir, "artifacts", "train.py")

	require.NoError(t, s.WriteSource(context.Background(), "print('x')\n", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print('x')\n", string(data))
}

func TestListNotebooks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta.ipynb", "alpha.ipynb", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.ipynb"), 0o755))

	paths, err := testStore(t).ListNotebooks(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "alpha.ipynb"),
		filepath.Join(dir, "zeta.ipynb"),
	}, paths)
}
