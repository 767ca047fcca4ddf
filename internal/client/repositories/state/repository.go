// Package state persists the client's sync bookkeeping in SQLite: the
// single sync_state row, the history of issued shares and a small
// key/value metadata table.
package state

import (
	"context"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/models"
)

// Repository is the local state store. Load returns common.ErrNotFound
// when sync has never been enabled on this device.
type Repository interface {
	Load(ctx context.Context) (*models.SyncState, error)
	Save(ctx context.Context, s *models.SyncState) error
	SetDirty(ctx context.Context, dirty bool) error
	RecordPull(ctx context.Context, version int64, at time.Time) error
	RecordPush(ctx context.Context, version int64, at time.Time) error
	Clear(ctx context.Context) error

	AddShare(ctx context.Context, s *models.Share) error
	ListShares(ctx context.Context) ([]*models.Share, error)
	DeleteShare(ctx context.Context, syncID string) error
	PurgeExpiredShares(ctx context.Context, now time.Time) (int64, error)

	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}
