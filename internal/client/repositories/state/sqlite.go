package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/models"
	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.SyncState, error) {
	s := &models.SyncState{}
	var pull, push sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT sync_id, key, device_id, last_version, dirty, last_pull_at, last_push_at
		FROM sync_state WHERE id = 1`).
		Scan(&s.SyncID, &s.Key, &s.DeviceID, &s.LastVersion, &s.Dirty, &pull, &push)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	s.LastPullAt = timePtr(pull)
	s.LastPushAt = timePtr(push)
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.SyncState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, sync_id, key, device_id, last_version, dirty, last_pull_at, last_push_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sync_id = excluded.sync_id,
			key = excluded.key,
			device_id = excluded.device_id,
			last_version = excluded.last_version,
			dirty = excluded.dirty,
			last_pull_at = excluded.last_pull_at,
			last_push_at = excluded.last_push_at
	`, s.SyncID, s.Key, s.DeviceID, s.LastVersion, s.Dirty, nullMillis(s.LastPullAt), nullMillis(s.LastPushAt))
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// update runs a single-row update and reports common.ErrNotFound when sync
// is not enabled.
func (r *SQLiteRepository) update(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetDirty(ctx context.Context, dirty bool) error {
	return r.update(ctx, "set dirty flag", `UPDATE sync_state SET dirty = ? WHERE id = 1`, dirty)
}

// RecordPull stores the version seen on a pull. The dirty flag is left alone.
func (r *SQLiteRepository) RecordPull(ctx context.Context, version int64, at time.Time) error {
	return r.update(ctx, "record pull",
		`UPDATE sync_state SET last_version = ?, last_pull_at = ? WHERE id = 1`, version, toMillis(at))
}

// RecordPush stores the version a push produced and clears the dirty flag.
func (r *SQLiteRepository) RecordPush(ctx context.Context, version int64, at time.Time) error {
	return r.update(ctx, "record push",
		`UPDATE sync_state SET last_version = ?, last_push_at = ?, dirty = 0 WHERE id = 1`, version, toMillis(at))
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_state`); err != nil {
		return fmt.Errorf("failed to clear sync state: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AddShare(ctx context.Context, s *models.Share) error {
	categories, err := json.Marshal(s.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	var maxViews sql.NullInt64
	if s.MaxViews != nil {
		maxViews = sql.NullInt64{Int64: *s.MaxViews, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO shares (sync_id, recipient_type, categories, created_at, expires_at, max_views)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.SyncID, s.RecipientType, string(categories), toMillis(s.CreatedAt), toMillis(s.ExpiresAt), maxViews)
	if err != nil {
		return fmt.Errorf("failed to add share %s: %w", s.SyncID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListShares(ctx context.Context) ([]*models.Share, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sync_id, recipient_type, categories, created_at, expires_at, max_views
		FROM shares ORDER BY created_at DESC, sync_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var out []*models.Share
	for rows.Next() {
		var (
			s                models.Share
			categories       string
			created, expires int64
			maxViews         sql.NullInt64
		)
		if err := rows.Scan(&s.SyncID, &s.RecipientType, &categories, &created, &expires, &maxViews); err != nil {
			return nil, fmt.Errorf("failed to scan share row: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &s.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories of %s: %w", s.SyncID, err)
		}
		s.CreatedAt = fromMillis(created)
		s.ExpiresAt = fromMillis(expires)
		if maxViews.Valid {
			v := maxViews.Int64
			s.MaxViews = &v
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate share rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteShare(ctx context.Context, syncID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shares WHERE sync_id = ?`, syncID); err != nil {
		return fmt.Errorf("failed to delete share %s: %w", syncID, err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeExpiredShares(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shares WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired shares: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return string(value), true, nil
}

func (r *SQLiteRepository) SetMeta(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}
