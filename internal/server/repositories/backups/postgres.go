package backups

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/dbx"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Snapshot(ctx context.Context, syncID string, now time.Time) error {
	query :=
		`INSERT INTO sync_backups (id, sync_id, version, encrypted_blob, device_id, created_at)
		 SELECT $1, sync_id, version, encrypted_blob, device_id, $3
		 FROM sync_groups
		 WHERE sync_id = $2 AND kind = 'sync'
		 FOR UPDATE
		 ON CONFLICT (sync_id, version) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), syncID, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, syncID string) ([]*models.Backup, error) {
	query :=
		`SELECT id, sync_id, version, device_id, octet_length(encrypted_blob), created_at
		 FROM sync_backups
		 WHERE sync_id = $1
		 ORDER BY version DESC`

	rows, err := r.db.QueryContext(ctx, query, syncID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Backup
	for rows.Next() {
		var b models.Backup
		if err := rows.Scan(&b.ID, &b.SyncID, &b.Version, &b.DeviceID, &b.Size, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Prune(ctx context.Context, syncID string, keep int) (int64, error) {
	query :=
		`DELETE FROM sync_backups
		 WHERE sync_id = $1
		   AND version NOT IN (
		       SELECT version FROM sync_backups
		       WHERE sync_id = $1
		       ORDER BY version DESC
		       LIMIT $2)`

	res, err := r.db.ExecContext(ctx, query, syncID, keep)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
