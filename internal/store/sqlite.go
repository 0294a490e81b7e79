package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/enrolstat/internal/utils"
	"github.com/mattn/go-sqlite3"
)

const datasetTable = `
CREATE TABLE IF NOT EXISTS datasets (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	size INTEGER NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLite keeps datasets in a single SQLite database file.
type SQLite struct {
	db    *sql.DB
	quota int64
}

// OpenSQLite opens (creating if needed) the database at path. ctx bounds the
// connection and schema setup.
func OpenSQLite(ctx context.Context, path string, opt Options) (*SQLite, error) {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite store: %w", err)
	}
	if _, err := db.ExecContext(ctx, datasetTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create datasets table: %w", sqliteErr(err))
	}
	return &SQLite{db: db, quota: opt.QuotaBytes}, nil
}

func (s *SQLite) Put(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.quota > 0 {
		var used int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size), 0) FROM datasets WHERE key <> ?`, key).Scan(&used)
		if err != nil {
			return fmt.Errorf("measure store: %w", err)
		}
		if err := checkQuota(key, s.quota, used, int64(len(value))); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (key, value, size, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, size = excluded.size, updated_at = excluded.updated_at`,
		key, value, len(value), now)
	if err != nil {
		return fmt.Errorf("save dataset %s: %w", key, sqliteErr(err))
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM datasets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, size, updated_at FROM datasets ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Size, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

// sqliteErr maps SQLITE_FULL to ErrStorageExhausted.
func sqliteErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %v", ErrStorageExhausted, err)
	}
	return diskFull(err)
}
