package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS request_log (
    id          TEXT PRIMARY KEY,
    request_id  TEXT NOT NULL,
    time        TIMESTAMP NOT NULL,
    method      TEXT NOT NULL,
    path        TEXT NOT NULL,
    status      INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    model       TEXT NOT NULL DEFAULT '',
    streamed    BOOLEAN NOT NULL DEFAULT 0,
    origin      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_request_log_time ON request_log(time);
`

// Store persists request records in a local sqlite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at path and ensures
// the schema exists. WAL mode keeps the async writer from blocking
// concurrent readers like the status command.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Cause: err}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Cause: err}
	}
	// The sqlite driver serializes writes anyway; a single connection
	// avoids lock contention entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, &StorageError{Op: "migrate", Cause: err}
	}
	return &Store{db: db}, nil
}

// Insert writes one record.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_log (id, request_id, time, method, path, status, duration_ms, model, streamed, origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.Time.UTC(), rec.Method, rec.Path,
		rec.Status, rec.Duration.Milliseconds(), rec.Model, rec.Streamed, rec.Origin,
	)
	if err != nil {
		return &StorageError{Op: "insert", Cause: err}
	}
	return nil
}

// DeleteBefore removes records older than cutoff and reports how many
// were pruned.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM request_log WHERE time < ?`, cutoff.UTC())
	if err != nil {
		return 0, &StorageError{Op: "prune", Cause: err}
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "prune", Cause: err}
	}
	return deleted, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_log`).Scan(&count); err != nil {
		return 0, &StorageError{Op: "count", Cause: err}
	}
	return count, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, time, method, path, status, duration_ms, model, streamed, origin
		 FROM request_log ORDER BY time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &StorageError{Op: "query", Cause: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Time, &rec.Method, &rec.Path,
			&rec.Status, &durationMs, &rec.Model, &rec.Streamed, &rec.Origin); err != nil {
			return nil, &StorageError{Op: "query", Cause: err}
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query", Cause: err}
	}
	return records, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
