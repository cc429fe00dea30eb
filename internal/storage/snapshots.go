package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	Collection string    `json:"collection"`
	Hash       string    `json:"hash"`
	Records    int       `json:"records"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SaveSnapshot replaces the stored snapshot of collection. payload must be
// a JSON array.
func (s *DB) SaveSnapshot(ctx context.Context, collection string, payload []byte, hash string) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(payload, &rows); err != nil {
		return fmt.Errorf("snapshot %s is not a JSON array: %w", collection, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (collection, payload, hash, records, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET
			payload=excluded.payload,
			hash=excluded.hash,
			records=excluded.records,
			updated_at=excluded.updated_at`,
		collection, payload, hash, len(rows), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", collection, err)
	}
	return nil
}

// LoadSnapshot returns the stored payload and hash. ok is false when no
// snapshot exists.
func (s *DB) LoadSnapshot(ctx context.Context, collection string) ([]byte, string, bool, error) {
	var (
		payload []byte
		hash    string
	)
	err := s.db.QueryRowContext(ctx, `SELECT payload, hash FROM snapshots WHERE collection = ?`, collection).Scan(&payload, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("load snapshot %s: %w", collection, err)
	}
	return payload, hash, true, nil
}

func (s *DB) DeleteSnapshot(ctx context.Context, collection string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE collection = ?`, collection)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	s.logger.Info("snapshot deleted", "collection", collection)
	return nil
}

func (s *DB) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT collection, hash, records, updated_at FROM snapshots ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var (
			info      SnapshotInfo
			updatedAt string
		)
		if err := rows.Scan(&info.Collection, &info.Hash, &info.Records, &updatedAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			info.UpdatedAt = ts.UTC()
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
