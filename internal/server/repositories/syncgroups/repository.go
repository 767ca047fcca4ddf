// Package syncgroups stores sync groups and share artifacts.
package syncgroups

import (
	"context"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
)

// Repository persists sync groups. Push and ConsumeView are each a single
// atomic step per sync id: concurrent callers never observe or assign the
// same version or view slot.
type Repository interface {
	// Create inserts g at version 1. An existing sync id yields common.ErrConflict.
	Create(ctx context.Context, g *models.SyncGroup) error
	Get(ctx context.Context, syncID string) (*models.SyncGroup, error)
	// Push replaces the blob of a sync-kind group and returns the new version.
	Push(ctx context.Context, syncID, deviceID, blob string, now time.Time) (int64, error)
	// ConsumeView increments view_count of a readable share and returns the
	// updated row; common.ErrNotFound when nothing was consumed.
	ConsumeView(ctx context.Context, syncID string, now time.Time) (*models.SyncGroup, error)
	Delete(ctx context.Context, syncID string) (int64, error)
	// ListPurgeable returns groups idle since before inactiveBefore and
	// shares expired at now, oldest first.
	ListPurgeable(ctx context.Context, inactiveBefore, now time.Time, limit int) ([]*models.SyncGroup, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}
