package syncq

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_writes (
	id TEXT PRIMARY KEY,
	endpoint TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_writes_created ON pending_writes(created_at);
`

// SQLiteStorage persists pending records in a SQLite database so they
// survive restarts.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the queue database at path.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("queue database path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Add implements Storage.
func (s *SQLiteStorage) Add(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_writes (id, endpoint, payload, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Endpoint, []byte(rec.Payload), rec.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert pending write: %w", err)
	}
	return nil
}

// List implements Storage.
func (s *SQLiteStorage) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, endpoint, payload, created_at FROM pending_writes ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list pending writes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			payload []byte
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Endpoint, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan pending write: %w", err)
		}
		rec.Payload = payload
		rec.CreatedAt = time.UnixMilli(created).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending writes: %w", err)
	}
	return records, nil
}

// Remove implements Storage. All ids are removed in one transaction.
func (s *SQLiteStorage) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM pending_writes WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete pending write %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
