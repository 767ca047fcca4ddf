// Package devices keeps per-device bookkeeping for sync groups.
package devices

import (
	"context"

	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
)

type Repository interface {
	// Touch inserts the device or refreshes its last_seen. An empty name
	// keeps the stored one.
	Touch(ctx context.Context, d *models.Device) error
	List(ctx context.Context, syncID string) ([]*models.Device, error)
}
