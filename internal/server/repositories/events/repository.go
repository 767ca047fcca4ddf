// Package events stores the audit trail of sync and share activity.
package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
)

type Repository interface {
	Record(ctx context.Context, e *models.Event) error
	ListBySyncID(ctx context.Context, syncID string, limit int) ([]*models.Event, error)
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}
