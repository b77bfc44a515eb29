// Package ledger keeps the incremental-run bookkeeping in an embedded
// sqlite database: the last committed content checksum per entity key, and
// one summary row per run for retry-next-run tooling.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	key        TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL,
	source_url TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TIMESTAMP NOT NULL,
	attempted  INTEGER NOT NULL,
	succeeded  INTEGER NOT NULL,
	partial    INTEGER NOT NULL,
	failed     INTEGER NOT NULL,
	skipped    INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL
);
`

type Ledger struct {
	db *sql.DB
}

func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger")
	}
	// sqlite allows one writer; the ledger is only touched from the
	// orchestrator's result loop anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to init ledger schema")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Checksum returns the last committed content hash for key, or "" when the
// key has never been persisted.
func (l *Ledger) Checksum(ctx context.Context, key string) (string, error) {
	var checksum string
	err := l.db.QueryRowContext(ctx, `SELECT checksum FROM entities WHERE key = ?`, key).Scan(&checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "checksum lookup for %q", key)
	}
	return checksum, nil
}

// Commit records the checksum of a freshly persisted artifact.
func (l *Ledger) Commit(ctx context.Context, key, checksum, sourceURL string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO entities (key, checksum, source_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			checksum = excluded.checksum,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at`,
		key, checksum, sourceURL, time.Now().UTC(),
	)
	return errors.Wrapf(err, "ledger commit for %q", key)
}

// RunSummary is one finished run as recorded in the runs table.
type RunSummary struct {
	StartedAt time.Time
	Attempted int
	Succeeded int
	Partial   int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
}

func (l *Ledger) RecordRun(ctx context.Context, run RunSummary) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, attempted, succeeded, partial, failed, skipped, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC(), run.Attempted, run.Succeeded, run.Partial, run.Failed, run.Skipped,
		run.Elapsed.Milliseconds(),
	)
	return errors.Wrap(err, "failed to record run")
}

// LastRun returns the most recent run summary, or nil when no run has been
// recorded yet.
func (l *Ledger) LastRun(ctx context.Context) (*RunSummary, error) {
	var (
		run       RunSummary
		elapsedMS int64
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT started_at, attempted, succeeded, partial, failed, skipped, elapsed_ms
		FROM runs ORDER BY id DESC LIMIT 1`).
		Scan(&run.StartedAt, &run.Attempted, &run.Succeeded, &run.Partial, &run.Failed,
			&run.Skipped, &elapsedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read last run")
	}
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &run, nil
}
