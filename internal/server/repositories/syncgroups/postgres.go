package syncgroups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/dbx"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
)

const columns = `sync_id, kind, encrypted_blob, version, device_id, created_at, updated_at,
		recipient_type, expires_at, max_views, view_count`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.SyncGroup, error) {
	var (
		g             models.SyncGroup
		recipientType sql.NullString
		expiresAt     sql.NullTime
		maxViews      sql.NullInt64
	)
	err := row.Scan(&g.SyncID, &g.Kind, &g.EncryptedBlob, &g.Version, &g.DeviceID, &g.CreatedAt, &g.UpdatedAt,
		&recipientType, &expiresAt, &maxViews, &g.ViewCount)
	if err != nil {
		return nil, err
	}
	g.RecipientType = recipientType.String
	if expiresAt.Valid {
		t := expiresAt.Time
		g.ExpiresAt = &t
	}
	if maxViews.Valid {
		n := maxViews.Int64
		g.MaxViews = &n
	}
	return &g, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func (r *PostgresRepository) Create(ctx context.Context, g *models.SyncGroup) error {
	query :=
		`INSERT INTO sync_groups (sync_id, kind, encrypted_blob, version, device_id, created_at, updated_at,
		     recipient_type, expires_at, max_views, view_count)
		 VALUES ($1, $2, $3, 1, $4, $5, $5, $6, $7, $8, 0)
		 ON CONFLICT (sync_id) DO NOTHING`

	var recipientType any
	if g.IsShare() {
		recipientType = g.RecipientType
	}

	res, err := r.db.ExecContext(ctx, query, g.SyncID, g.Kind, g.EncryptedBlob, g.DeviceID, g.CreatedAt,
		recipientType, nullable(g.ExpiresAt), nullable(g.MaxViews))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrConflict
	}

	g.Version = 1
	g.UpdatedAt = g.CreatedAt
	g.ViewCount = 0
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, syncID string) (*models.SyncGroup, error) {
	query := `SELECT ` + columns + ` FROM sync_groups WHERE sync_id = $1`

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, syncID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) Push(ctx context.Context, syncID, deviceID, blob string, now time.Time) (int64, error) {
	query :=
		`UPDATE sync_groups
		 SET encrypted_blob = $2, device_id = $3, version = version + 1, updated_at = $4
		 WHERE sync_id = $1 AND kind = 'sync'
		 RETURNING version`

	var version int64
	err := r.db.QueryRowContext(ctx, query, syncID, blob, deviceID, now).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *PostgresRepository) ConsumeView(ctx context.Context, syncID string, now time.Time) (*models.SyncGroup, error) {
	query :=
		`UPDATE sync_groups
		 SET view_count = view_count + 1
		 WHERE sync_id = $1 AND kind = 'share'
		   AND (expires_at IS NULL OR expires_at > $2)
		   AND (max_views IS NULL OR view_count < max_views)
		 RETURNING ` + columns

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, syncID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, syncID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_groups WHERE sync_id = $1`, syncID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListPurgeable(ctx context.Context, inactiveBefore, now time.Time, limit int) ([]*models.SyncGroup, error) {
	query := `SELECT ` + columns + ` FROM sync_groups
		 WHERE (kind = 'sync' AND updated_at < $1) OR (kind = 'share' AND expires_at <= $2)
		 ORDER BY updated_at
		 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, inactiveBefore, now, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.SyncGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `DELETE FROM sync_groups WHERE sync_id IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
