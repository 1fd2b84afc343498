package store

import (
	"context"
	"errors"

	"github.com/joescharf/codereview/internal/models"
)

// ErrSnapshotNotFound is returned when a snapshot ID has no row.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store persists catalog snapshots for offline querying.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context, ref string) ([]*models.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
