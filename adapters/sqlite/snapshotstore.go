package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/modelkit/ports"
)

// SnapshotStore implements ports.SnapshotStore using SQLite. Field values are
// stored as one JSON object per record.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SQLite snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Get retrieves a snapshot by record ID.
func (s *SnapshotStore) Get(ctx context.Context, id string) (ports.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, version, data, created_at, updated_at
		FROM snapshots
		WHERE id = ?
	`, id)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Snapshot{}, fmt.Errorf("snapshot %q: %w", id, ports.ErrNotFound)
	}
	return snap, err
}

// Save creates or replaces a snapshot. created_at is set on first insert only.
func (s *SnapshotStore) Save(ctx context.Context, snap ports.Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", snap.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, model, version, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model = excluded.model,
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, snap.ID, snap.Model, snap.Version, string(data), snap.CreatedAt.UTC(), snap.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", snap.ID, err)
	}
	return nil
}

// Delete removes a snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("snapshot %q: %w", id, ports.ErrNotFound)
	}
	return nil
}

// List returns snapshots ordered by creation time, then ID.
func (s *SnapshotStore) List(ctx context.Context, filter ports.SnapshotFilter) ([]ports.Snapshot, error) {
	query := `SELECT id, model, version, data, created_at, updated_at FROM snapshots`
	var args []any
	if filter.Model != "" {
		query += ` WHERE model = ?`
		args = append(args, filter.Model)
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ports.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}

// Count returns the number of snapshots for a model, or all when empty.
func (s *SnapshotStore) Count(ctx context.Context, model string) (int, error) {
	var n int
	var err error
	if model == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE model = ?`, model).Scan(&n)
	}
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (ports.Snapshot, error) {
	var snap ports.Snapshot
	var data string

	err := row.Scan(&snap.ID, &snap.Model, &snap.Version, &data, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		return ports.Snapshot{}, err
	}

	if err := json.Unmarshal([]byte(data), &snap.Data); err != nil {
		return ports.Snapshot{}, fmt.Errorf("decode snapshot %q: %w", snap.ID, err)
	}
	return snap, nil
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
