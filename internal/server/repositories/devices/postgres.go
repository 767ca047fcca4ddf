package devices

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/manylla-sync/internal/dbx"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Touch(ctx context.Context, d *models.Device) error {
	query :=
		`INSERT INTO sync_devices (sync_id, device_id, device_name, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (sync_id, device_id) DO UPDATE
		 SET last_seen = EXCLUDED.last_seen,
		     device_name = COALESCE(NULLIF(EXCLUDED.device_name, ''), sync_devices.device_name)`

	_, err := r.db.ExecContext(ctx, query, d.SyncID, d.DeviceID, d.DeviceName, d.LastSeen)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, syncID string) ([]*models.Device, error) {
	query :=
		`SELECT sync_id, device_id, device_name, first_seen, last_seen
		 FROM sync_devices
		 WHERE sync_id = $1
		 ORDER BY last_seen DESC`

	rows, err := r.db.QueryContext(ctx, query, syncID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Device
	for rows.Next() {
		d := &models.Device{}
		if err := rows.Scan(&d.SyncID, &d.DeviceID, &d.DeviceName, &d.FirstSeen, &d.LastSeen); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
