// Package journal keeps an SQLite audit trail of retention passes and the
// files they deleted.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/raoulx24/logkeeper/internal/retention"
)

// Times are stored as Unix nanoseconds so they sort numerically.
const schema = `
CREATE TABLE IF NOT EXISTS passes (
    id          TEXT PRIMARY KEY,
    target      TEXT NOT NULL,
    base_path   TEXT NOT NULL,
    started_ns  INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    test_mode   INTEGER NOT NULL,
    scanned     INTEGER NOT NULL,
    selected    INTEGER NOT NULL,
    deleted     INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    error       TEXT
);
CREATE INDEX IF NOT EXISTS passes_target_started ON passes (target, started_ns);
CREATE TABLE IF NOT EXISTS files (
    pass_id  TEXT NOT NULL REFERENCES passes (id) ON DELETE CASCADE,
    path     TEXT NOT NULL,
    size     INTEGER NOT NULL,
    mtime_ns INTEGER NOT NULL,
    outcome  TEXT NOT NULL,
    error    TEXT
);
`

// File outcomes.
const (
	OutcomeDeleted = "deleted"
	OutcomeFailed  = "failed"
)

// Journal is safe for concurrent use.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating journal dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply pragma %q", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Journal{db: db, path: path}, nil
}

func (j *Journal) Path() string { return j.path }

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordPass stores r and its per-file outcomes in one transaction.
func (j *Journal) RecordPass(ctx context.Context, r retention.Result, passErr error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO passes (id, target, base_path, started_ns, duration_ms, test_mode,
            scanned, selected, deleted, failed, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Target, r.BasePath,
		r.Started.UnixNano(),
		r.Duration.Milliseconds(),
		r.TestMode,
		r.Scanned, len(r.Selected), len(r.Deleted), len(r.Failed),
		errString(passErr),
	)
	if err != nil {
		return errors.Wrap(err, "insert pass")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (pass_id, path, size, mtime_ns, outcome, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare file insert")
	}
	defer stmt.Close()

	for _, f := range r.Deleted {
		if _, err := stmt.ExecContext(ctx, r.ID, f.Path, f.Size, f.MTime.UnixNano(), OutcomeDeleted, nil); err != nil {
			return errors.Wrap(err, "insert deleted file")
		}
	}
	for _, f := range r.Failed {
		if _, err := stmt.ExecContext(ctx, r.ID, f.Path, 0, 0, OutcomeFailed, errString(f.Err)); err != nil {
			return errors.Wrap(err, "insert failed file")
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// Pass is one journaled retention pass.
type Pass struct {
	ID       string
	Target   string
	BasePath string
	Started  time.Time
	Duration time.Duration
	TestMode bool
	Scanned  int
	Selected int
	Deleted  int
	Failed   int
	Error    string
}

// Recent returns up to limit passes, newest first. An empty target means
// every target.
func (j *Journal) Recent(ctx context.Context, target string, limit int) ([]Pass, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, target, base_path, started_ns, duration_ms, test_mode,
            scanned, selected, deleted, failed, COALESCE(error, '')
        FROM passes
        WHERE ? = '' OR target = ?
        ORDER BY started_ns DESC, rowid DESC
        LIMIT ?`,
		target, target, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query passes")
	}
	defer rows.Close()

	var out []Pass
	for rows.Next() {
		var (
			p       Pass
			started int64
			ms      int64
		)
		if err := rows.Scan(&p.ID, &p.Target, &p.BasePath, &started, &ms, &p.TestMode,
			&p.Scanned, &p.Selected, &p.Deleted, &p.Failed, &p.Error); err != nil {
			return nil, errors.Wrap(err, "scan pass")
		}
		p.Started = time.Unix(0, started).UTC()
		p.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate passes")
}

// DeletedFiles returns the paths deleted by pass id.
func (j *Journal) DeletedFiles(ctx context.Context, id string) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT path FROM files WHERE pass_id = ? AND outcome = ? ORDER BY rowid`, id, OutcomeDeleted)
	if err != nil {
		return nil, errors.Wrap(err, "query files")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.Wrap(err, "scan file")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate files")
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
