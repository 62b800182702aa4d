// Package history keeps a SQLite journal of task-class runs for display.
// It is write-only from the control loop's point of view.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/iot-printer/internal/tasks"
)

const currentVersion = 1

// DefaultKeep is how many runs Prune keeps by default.
const DefaultKeep = 1000

// Run is one journaled task-class run.
type Run struct {
	ID       int64
	Class    string
	Started  time.Time
	Duration time.Duration
	Ran      int
	Failed   int
	Error    string
	Tasks    []TaskRun
}

// TaskRun is one task within a Run.
type TaskRun struct {
	Name     string
	Duration time.Duration
	Error    string
}

// Journal stores runs in SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path and runs migrations.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// the loop writes while HTTP reads
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

// OpenMemory creates an in-memory journal for testing.
func OpenMemory() (*Journal, error) {
	return Open(":memory:")
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	var version int
	if err := j.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		const ddl = `
		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			class       TEXT NOT NULL,
			started     TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			ran         INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS run_tasks (
			run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq         INTEGER NOT NULL,
			name        TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);`
		if _, err := j.db.Exec(ddl); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}

	_, err := j.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// Record stores the outcome of a class run. runErr is the error returned by
// the registry, if any.
func (j *Journal) Record(res tasks.Result, runErr error) (int64, error) {
	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	msg := errString(runErr)
	if msg == "" {
		msg = errString(res.FirstError())
	}

	r, err := tx.Exec(
		`INSERT INTO runs (class, started, duration_ms, ran, failed, error) VALUES (?, ?, ?, ?, ?, ?)`,
		string(res.Class), res.Started.UTC().Format(time.RFC3339Nano), res.Duration.Milliseconds(),
		res.Ran(), res.Failed(), msg,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, _ := r.LastInsertId()

	for i, t := range res.Tasks {
		if _, err := tx.Exec(
			`INSERT INTO run_tasks (run_id, seq, name, duration_ms, error) VALUES (?, ?, ?, ?, ?)`,
			id, i, t.Name, t.Duration.Milliseconds(), errString(t.Err),
		); err != nil {
			return 0, fmt.Errorf("insert task %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first, with their tasks.
func (j *Journal) Recent(limit int) ([]Run, error) {
	rows, err := j.db.Query(
		`SELECT id, class, started, duration_ms, ran, failed, error
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var durMs int64
		if err := rows.Scan(&r.ID, &r.Class, &started, &durMs, &r.Ran, &r.Failed, &r.Error); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Duration = time.Duration(durMs) * time.Millisecond
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		t, err := j.tasksFor(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Tasks = t
	}
	return runs, nil
}

func (j *Journal) tasksFor(runID int64) ([]TaskRun, error) {
	rows, err := j.db.Query(
		`SELECT name, duration_ms, error FROM run_tasks WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks for run %d: %w", runID, err)
	}
	defer rows.Close()

	var out []TaskRun
	for rows.Next() {
		var t TaskRun
		var durMs int64
		if err := rows.Scan(&t.Name, &durMs, &t.Error); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, t)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (j *Journal) Prune(keep int) (int64, error) {
	res, err := j.db.Exec(
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
