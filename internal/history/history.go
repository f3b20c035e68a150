// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records notebook runs in a SQLite log with full-text
// search over run metadata.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/nbforge/pkg/types"
)

const (
	dbFile = "history.db"

	// minPrefixLen is the shortest run ID prefix Get accepts.
	minPrefixLen = 4

	defaultLimit = 20
)

const runColumns = `id, input_path, output_path, engine, kernel, language,
	parameters, extract_tags, artifact_dir, status, error,
	started_at, finished_at, duration_ms`

// Store manages the run log SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the run log location used when history.path is not
// configured.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".nbforge", dbFile), nil
}

// Open opens or creates the run log database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input_path TEXT NOT NULL,
			output_path TEXT,
			engine TEXT,
			kernel TEXT,
			language TEXT,
			parameters TEXT,
			extract_tags TEXT,
			artifact_dir TEXT,
			status TEXT NOT NULL,
			error TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='runs_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE runs_fts USING fts5(
				input_path, parameters, status, error,
				content=runs, content_rowid=rowid
			)`,
			`CREATE TRIGGER runs_ai AFTER INSERT ON runs BEGIN
				INSERT INTO runs_fts(rowid, input_path, parameters, status, error)
				VALUES (new.rowid, new.input_path, new.parameters, new.status, new.error);
			END`,
			`CREATE TRIGGER runs_ad AFTER DELETE ON runs BEGIN
				INSERT INTO runs_fts(runs_fts, rowid, input_path, parameters, status, error)
				VALUES ('delete', old.rowid, old.input_path, old.parameters, old.status, old.error);
			END`,
			`CREATE TRIGGER runs_au AFTER UPDATE ON runs BEGIN
				INSERT INTO runs_fts(runs_fts, rowid, input_path, parameters, status, error)
				VALUES ('delete', old.rowid, old.input_path, old.parameters, old.status, old.error);
				INSERT INTO runs_fts(rowid, input_path, parameters, status, error)
				VALUES (new.rowid, new.input_path, new.parameters, new.status, new.error);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// Record upserts one run. The row and its FTS entry land in a single
// transaction.
func (s *Store) Record(ctx context.Context, run *types.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	tagsJSON, _ := json.Marshal(run.ExtractTags)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			input_path=excluded.input_path, output_path=excluded.output_path,
			engine=excluded.engine, kernel=excluded.kernel, language=excluded.language,
			parameters=excluded.parameters, extract_tags=excluded.extract_tags,
			artifact_dir=excluded.artifact_dir, status=excluded.status, error=excluded.error,
			started_at=excluded.started_at, finished_at=excluded.finished_at,
			duration_ms=excluded.duration_ms`,
		run.ID, run.InputPath, run.OutputPath, run.Engine, run.Kernel, run.Language,
		run.Parameters, string(tagsJSON), run.ArtifactDir, string(run.Status), run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}

	return tx.Commit()
}

// Get looks up a run by full ID or by unique prefix. Prefixes shorter
// than four characters are rejected; a prefix matching more than one run
// is an error.
func (s *Store) Get(ctx context.Context, id string) (*types.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == nil {
		return &run, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("looking up run: %w", err)
	}

	if len(id) < minPrefixLen {
		return nil, fmt.Errorf("run %s not found (prefixes need at least %d characters)", id, minPrefixLen)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`,
		len(id), id)
	if err != nil {
		return nil, fmt.Errorf("looking up run prefix: %w", err)
	}
	defer rows.Close()

	var matches []types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run %s not found", id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %s is ambiguous", id)
	}
}

// ListOptions narrows a List call.
type ListOptions struct {
	// Limit caps result count. Zero uses the default of 20.
	Limit int

	// Status keeps only runs with this terminal status.
	Status types.RunStatus

	// Since keeps only runs started at or after this instant.
	Since time.Time
}

// List returns recorded runs, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + runColumns + ` FROM runs WHERE 1=1`)

	if opts.Status != "" {
		qb.WriteString(` AND status = ?`)
		args = append(args, string(opts.Status))
	}
	if !opts.Since.IsZero() {
		qb.WriteString(` AND started_at >= ?`)
		args = append(args, opts.Since.UTC())
	}

	qb.WriteString(` ORDER BY started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// Search queries the run log with FTS5 over input path, parameters,
// status and error text, ranked by bm25.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]types.Run, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.input_path, r.output_path, r.engine, r.kernel, r.language,
			r.parameters, r.extract_tags, r.artifact_dir, r.status, r.error,
			r.started_at, r.finished_at, r.duration_ms
		FROM runs_fts
		JOIN runs r ON r.rowid = runs_fts.rowid
		WHERE runs_fts MATCH ?
		ORDER BY bm25(runs_fts)
		LIMIT ?`,
		ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// Prune deletes runs started before olderThan and reports how many rows
// went away.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE started_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned runs: %w", err)
	}
	return n, nil
}

// ftsQuery passes plain word queries through untouched and quotes
// anything carrying FTS5 syntax characters into a phrase query, so
// searching for a path like runs/out.ipynb does not trip the parser.
func ftsQuery(query string) string {
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' {
			continue
		}
		return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	}
	return query
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (types.Run, error) {
	var (
		run        types.Run
		tagsJSON   sql.NullString
		errMsg     sql.NullString
		durationMS int64
	)

	if err := row.Scan(
		&run.ID, &run.InputPath, &run.OutputPath, &run.Engine, &run.Kernel, &run.Language,
		&run.Parameters, &tagsJSON, &run.ArtifactDir, &run.Status, &errMsg,
		&run.StartedAt, &run.FinishedAt, &durationMS,
	); err != nil {
		return types.Run{}, err
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &run.ExtractTags)
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

func collectRuns(rows *sql.Rows) ([]types.Run, error) {
	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
