// Package storage persists the last applied snapshot of each collection in
// SQLite so a restarted process can serve reads before its first fetch.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(ctx context.Context, dbPath string, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if logger == nil {
		logger = slog.Default()
	}
	store := &DB{db: db, logger: logger, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *DB) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			collection TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			hash TEXT NOT NULL,
			records INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}
