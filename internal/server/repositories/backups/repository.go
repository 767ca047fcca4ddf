// Package backups keeps the most recent superseded blobs of each sync group.
package backups

import (
	"context"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
)

type Repository interface {
	// Snapshot copies the group's current blob into the backup table and
	// locks the group row until the transaction ends. A missing group, a
	// share or an already backed up version copies nothing.
	Snapshot(ctx context.Context, syncID string, now time.Time) error
	// List returns backup metadata, newest version first.
	List(ctx context.Context, syncID string) ([]*models.Backup, error)
	// Prune keeps the newest keep backups of the group and deletes the rest.
	Prune(ctx context.Context, syncID string, keep int) (int64, error)
}
