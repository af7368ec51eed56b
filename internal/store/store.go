// Package store provides the SQLite persistence layer: the last scraped
// batch per variant (so exports can be re-generated without a new run)
// and a small key/value settings table.
//
// The caller must blank-import a driver before calling Open:
//
//	import _ "modernc.org/sqlite"
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/tilewalk/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    variant      TEXT NOT NULL,
    created_at   INTEGER NOT NULL,
    records_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_variant_created
    ON batches(variant, created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// ErrNoBatch is returned by LastBatch when nothing has been saved yet.
var ErrNoBatch = errors.New("store: no batch saved")

// Store is the scraper database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the SQLite database at path, applies the
// production pragmas and the schema. Parent directories are created.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// SaveBatch persists a finished run's records for later re-export.
func (s *Store) SaveBatch(ctx context.Context, b record.Batch) error {
	data, err := json.Marshal(b.Records)
	if err != nil {
		return fmt.Errorf("store: marshal records: %w", err)
	}
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO batches (variant, created_at, records_json) VALUES (?, ?, ?)`,
		b.Variant, created.Unix(), string(data))
	if err != nil {
		return fmt.Errorf("store: save batch: %w", err)
	}
	return nil
}

// LastBatch returns the most recent batch. With variant "" the newest
// batch of any variant is returned. ErrNoBatch when nothing matches.
func (s *Store) LastBatch(ctx context.Context, variant string) (record.Batch, error) {
	q := `SELECT variant, created_at, records_json FROM batches`
	args := []any{}
	if variant != "" {
		q += ` WHERE variant = ?`
		args = append(args, variant)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT 1`

	var b record.Batch
	var created int64
	var raw string
	err := s.DB.QueryRowContext(ctx, q, args...).Scan(&b.Variant, &created, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Batch{}, ErrNoBatch
	}
	if err != nil {
		return record.Batch{}, fmt.Errorf("store: last batch: %w", err)
	}
	b.CreatedAt = time.Unix(created, 0)
	if err := json.Unmarshal([]byte(raw), &b.Records); err != nil {
		return record.Batch{}, fmt.Errorf("store: unmarshal records: %w", err)
	}
	return b, nil
}

// SaveSetting upserts one settings key.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("store: save setting: %w", err)
	}
	return nil
}

// Setting returns the value for key, "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: setting: %w", err)
	}
	return v, nil
}

// Well-known settings keys.
const (
	SettingFaceKey     = "facepp_api_key"
	SettingFaceSecret  = "facepp_api_secret"
	SettingFaceEnabled = "facepp_enabled"
)
