// Package store persists imported dataset snapshots and municipality
// centroids behind a driver-selectable interface.
package store

import (
	"context"
	"time"

	"github.com/epiwatch/leishdash/internal/dataset"
)

// Snapshot describes one imported copy of the notification dataset.
type Snapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for snapshots and centroids.
// Aggregation never happens in SQL: a loaded snapshot goes through the same
// in-memory normalization as a file.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, name string, records []dataset.CaseRecord) (*Snapshot, error)
	LoadSnapshot(ctx context.Context, name string) ([]dataset.CaseRecord, error)
	ListSnapshots(ctx context.Context) ([]Snapshot, error)

	// Centroids
	UpsertCentroids(ctx context.Context, centroids []dataset.Centroid) (int, error)
	Centroids(ctx context.Context) (map[string]dataset.Centroid, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// snapshotSource adapts a stored snapshot to the loader's Source interface.
type snapshotSource struct {
	store Store
	name  string
}

// Source returns a dataset source that reads the named snapshot.
func Source(s Store, name string) dataset.Source {
	return &snapshotSource{store: s, name: name}
}

func (s *snapshotSource) Read(ctx context.Context) ([]dataset.CaseRecord, error) {
	return s.store.LoadSnapshot(ctx, s.name)
}
