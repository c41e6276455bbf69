// Package memory provides in-memory implementations for testing.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/artpar/modelkit/ports"
)

// SnapshotStore is an in-memory implementation of ports.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]ports.Snapshot // by ID
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[string]ports.Snapshot),
	}
}

// Get retrieves a snapshot by record ID.
func (s *SnapshotStore) Get(ctx context.Context, id string) (ports.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return ports.Snapshot{}, fmt.Errorf("snapshot %q: %w", id, ports.ErrNotFound)
	}
	return clone(snap), nil
}

// Save creates or replaces a snapshot. CreatedAt of an existing snapshot is kept.
func (s *SnapshotStore) Save(ctx context.Context, snap ports.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.snapshots[snap.ID]; ok {
		snap.CreatedAt = prev.CreatedAt
	}
	s.snapshots[snap.ID] = clone(snap)
	return nil
}

// Delete removes a snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[id]; !ok {
		return fmt.Errorf("snapshot %q: %w", id, ports.ErrNotFound)
	}
	delete(s.snapshots, id)
	return nil
}

// List returns snapshots ordered by creation time, then ID.
func (s *SnapshotStore) List(ctx context.Context, filter ports.SnapshotFilter) ([]ports.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ports.Snapshot
	for _, snap := range s.snapshots {
		if filter.Model != "" && snap.Model != filter.Model {
			continue
		}
		result = append(result, clone(snap))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the number of snapshots for a model, or all when empty.
func (s *SnapshotStore) Count(ctx context.Context, model string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if model == "" {
		return len(s.snapshots), nil
	}
	n := 0
	for _, snap := range s.snapshots {
		if snap.Model == model {
			n++
		}
	}
	return n, nil
}

// Clear removes all snapshots (for testing).
func (s *SnapshotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string]ports.Snapshot)
}

func clone(snap ports.Snapshot) ports.Snapshot {
	snap.Data = maps.Clone(snap.Data)
	return snap
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
