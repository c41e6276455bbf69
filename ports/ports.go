// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// Snapshot is the committed state of one model instance.
type Snapshot struct {
	ID        string
	Model     string
	Version   int
	Data      map[string]any // serialized committed values, internal fields included
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotFilter narrows List results.
type SnapshotFilter struct {
	Model  string // empty matches every model
	Limit  int
	Offset int
}

// SnapshotStore persists committed model state.
type SnapshotStore interface {
	// Get retrieves a snapshot by record ID.
	Get(ctx context.Context, id string) (Snapshot, error)

	// Save creates or replaces a snapshot.
	Save(ctx context.Context, s Snapshot) error

	// Delete removes a snapshot.
	Delete(ctx context.Context, id string) error

	// List returns snapshots ordered by creation time.
	List(ctx context.Context, filter SnapshotFilter) ([]Snapshot, error)

	// Count returns the number of snapshots for a model, or all when empty.
	Count(ctx context.Context, model string) (int, error)
}
