package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/nbforge/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping SQLite integration test in short mode")
	}
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, status types.RunStatus, started time.Time) *types.Run {
	return &types.Run{
		ID:          id,
		InputPath:   "notebooks/train.ipynb",
		OutputPath:  "runs/train-out.ipynb",
		Engine:      "jupyter",
		Kernel:      "python3",
		Language:    "python",
		Parameters:  `{"alpha": 0.5, "epochs": 10}`,
		ExtractTags: []string{"train", "evaluate"},
		ArtifactDir: "artifacts/" + id,
		Status:      status,
		StartedAt:   started,
		FinishedAt:  started.Add(90 * time.Second),
		Duration:    90 * time.Second,
	}
}

var testBase = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// --- schema tests ---

func TestIntegrationOpenCreatesSchema(t *testing.T) {
	store := testStore(t)

	tables := []string{"runs", "runs_fts"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestIntegrationOpenCreatesParentDirs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping SQLite integration test in short mode")
	}
	dbPath := filepath.Join(t.TempDir(), "state", "nbforge", "history.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}
}

// --- record and lookup tests ---

func TestIntegrationRecordAndGet(t *testing.T) {
	store := testStore(t)

	want := sampleRun("9f2a7c11-1111-4abc-8def-000000000001", types.RunSucceeded, testBase)
	if err := store.Record(context.Background(), want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
	if got.InputPath != want.InputPath {
		t.Errorf("InputPath = %q, want %q", got.InputPath, want.InputPath)
	}
	if got.OutputPath != want.OutputPath {
		t.Errorf("OutputPath = %q, want %q", got.OutputPath, want.OutputPath)
	}
	if got.Engine != want.Engine || got.Kernel != want.Kernel || got.Language != want.Language {
		t.Errorf("engine/kernel/language = %q/%q/%q, want %q/%q/%q",
			got.Engine, got.Kernel, got.Language, want.Engine, want.Kernel, want.Language)
	}
	if got.Parameters != want.Parameters {
		t.Errorf("Parameters = %q, want %q", got.Parameters, want.Parameters)
	}
	if len(got.ExtractTags) != 2 || got.ExtractTags[0] != "train" || got.ExtractTags[1] != "evaluate" {
		t.Errorf("ExtractTags = %v, want %v", got.ExtractTags, want.ExtractTags)
	}
	if got.ArtifactDir != want.ArtifactDir {
		t.Errorf("ArtifactDir = %q, want %q", got.ArtifactDir, want.ArtifactDir)
	}
	if got.Status != types.RunSucceeded {
		t.Errorf("Status = %q, want %q", got.Status, types.RunSucceeded)
	}
	if !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, want.StartedAt)
	}
	if !got.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, want.FinishedAt)
	}
	if got.Duration != want.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, want.Duration)
	}
}

func TestIntegrationRecordRequiresID(t *testing.T) {
	store := testStore(t)

	err := store.Record(context.Background(), &types.Run{Status: types.RunSucceeded})
	if err == nil {
		t.Fatal("expected error for run without id")
	}
}

func TestIntegrationRecordUpdatesExisting(t *testing.T) {
	store := testStore(t)

	run := sampleRun("9f2a7c11-2222-4abc-8def-000000000002", types.RunSucceeded, testBase)
	if err := store.Record(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	run.Status = types.RunFailed
	run.Error = "ZeroDivisionError: division by zero"
	if err := store.Record(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.RunFailed {
		t.Errorf("Status = %q, want %q", got.Status, types.RunFailed)
	}
	if got.Error != run.Error {
		t.Errorf("Error = %q, want %q", got.Error, run.Error)
	}

	runs, err := store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs after re-record, want 1", len(runs))
	}

	// The FTS index must track the update, not the original row.
	hits, err := store.Search(context.Background(), "ZeroDivisionError", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d search hits for updated error, want 1", len(hits))
	}
}

func TestIntegrationGetByPrefix(t *testing.T) {
	store := testStore(t)

	first := sampleRun("abcd1111-0000-4abc-8def-000000000001", types.RunSucceeded, testBase)
	second := sampleRun("abcd2222-0000-4abc-8def-000000000002", types.RunFailed, testBase.Add(time.Minute))
	for _, run := range []*types.Run{first, second} {
		if err := store.Record(context.Background(), run); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Get(context.Background(), "abcd1")
	if err != nil {
		t.Fatalf("Get by unique prefix: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("ID = %q, want %q", got.ID, first.ID)
	}

	if _, err := store.Get(context.Background(), "abcd"); err == nil {
		t.Error("expected error for ambiguous prefix")
	} else if !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("ambiguous prefix error = %q", err)
	}

	if _, err := store.Get(context.Background(), "abc"); err == nil {
		t.Error("expected error for too-short prefix")
	}

	if _, err := store.Get(context.Background(), "ffff0000"); err == nil {
		t.Error("expected error for unknown prefix")
	}
}

// --- list tests ---

func TestIntegrationListNewestFirst(t *testing.T) {
	store := testStore(t)

	ids := []string{
		"11111111-0000-4abc-8def-000000000001",
		"22222222-0000-4abc-8def-000000000002",
		"33333333-0000-4abc-8def-000000000003",
	}
	for i, id := range ids {
		run := sampleRun(id, types.RunSucceeded, testBase.Add(time.Duration(i)*time.Hour))
		if err := store.Record(context.Background(), run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if runs[i].ID != want {
			t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, want)
		}
	}
}

func TestIntegrationListFilters(t *testing.T) {
	store := testStore(t)

	ok := sampleRun("11111111-0000-4abc-8def-000000000011", types.RunSucceeded, testBase)
	bad := sampleRun("22222222-0000-4abc-8def-000000000022", types.RunFailed, testBase.Add(time.Hour))
	late := sampleRun("33333333-0000-4abc-8def-000000000033", types.RunSucceeded, testBase.Add(2*time.Hour))
	for _, run := range []*types.Run{ok, bad, late} {
		if err := store.Record(context.Background(), run); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("by status", func(t *testing.T) {
		runs, err := store.List(context.Background(), ListOptions{Status: types.RunFailed})
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].ID != bad.ID {
			t.Errorf("got %d runs, want the failed run only", len(runs))
		}
	})

	t.Run("by since", func(t *testing.T) {
		runs, err := store.List(context.Background(), ListOptions{Since: testBase.Add(30 * time.Minute)})
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 2 {
			t.Fatalf("got %d runs, want 2", len(runs))
		}
		if runs[0].ID != late.ID || runs[1].ID != bad.ID {
			t.Errorf("got %q, %q; want %q, %q", runs[0].ID, runs[1].ID, late.ID, bad.ID)
		}
	})

	t.Run("with limit", func(t *testing.T) {
		runs, err := store.List(context.Background(), ListOptions{Limit: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].ID != late.ID {
			t.Errorf("got %d runs, want newest run only", len(runs))
		}
	})
}

// --- search tests ---

func TestIntegrationSearch(t *testing.T) {
	store := testStore(t)

	ok := sampleRun("11111111-0000-4abc-8def-000000000111", types.RunSucceeded, testBase)
	bad := sampleRun("22222222-0000-4abc-8def-000000000222", types.RunFailed, testBase.Add(time.Hour))
	bad.InputPath = "notebooks/broken.ipynb"
	bad.Error = "ValueError: alpha must be positive"
	for _, run := range []*types.Run{ok, bad} {
		if err := store.Record(context.Background(), run); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("by error text", func(t *testing.T) {
		hits, err := store.Search(context.Background(), "ValueError", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 || hits[0].ID != bad.ID {
			t.Fatalf("got %d hits, want the failed run", len(hits))
		}
	})

	t.Run("by path with metacharacters", func(t *testing.T) {
		// The slash and dot would be FTS5 syntax errors unquoted.
		hits, err := store.Search(context.Background(), "notebooks/broken.ipynb", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 || hits[0].ID != bad.ID {
			t.Fatalf("got %d hits, want the broken-notebook run", len(hits))
		}
	})

	t.Run("no matches", func(t *testing.T) {
		hits, err := store.Search(context.Background(), "nonexistent", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 0 {
			t.Errorf("got %d hits, want 0", len(hits))
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if _, err := store.Search(context.Background(), "  ", 10); err == nil {
			t.Error("expected error for empty query")
		}
	})
}

// --- prune tests ---

func TestIntegrationPrune(t *testing.T) {
	store := testStore(t)

	ids := []string{
		"11111111-0000-4abc-8def-000000001111",
		"22222222-0000-4abc-8def-000000002222",
		"33333333-0000-4abc-8def-000000003333",
	}
	for i, id := range ids {
		run := sampleRun(id, types.RunSucceeded, testBase.Add(time.Duration(i)*24*time.Hour))
		if err := store.Record(context.Background(), run); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.Prune(context.Background(), testBase.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d runs, want 2", n)
	}

	runs, err := store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != ids[2] {
		t.Fatalf("got %d runs after prune, want the newest only", len(runs))
	}

	// Pruning everything must leave a working empty store.
	if _, err := store.Prune(context.Background(), testBase.Add(10*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	runs, err = store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("got %d runs after full prune, want 0", len(runs))
	}

	fresh := sampleRun("44444444-0000-4abc-8def-000000004444", types.RunSucceeded, testBase.Add(20*24*time.Hour))
	if err := store.Record(context.Background(), fresh); err != nil {
		t.Fatalf("Record after full prune: %v", err)
	}
	hits, err := store.Search(context.Background(), "train", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits after re-record, want 1", len(hits))
	}
}
