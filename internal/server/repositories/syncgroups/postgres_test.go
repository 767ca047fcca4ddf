package syncgroups

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	syncID   = "0123456789abcdef0123456789abcdef"
	deviceID = "fedcba9876543210fedcba9876543210"
	t0       = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

var groupCols = []string{"sync_id", "kind", "encrypted_blob", "version", "device_id", "created_at", "updated_at",
	"recipient_type", "expires_at", "max_views", "view_count"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Sync(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+sync_groups\s*\(.*\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*1,.*ON\s+CONFLICT\s*\(sync_id\)\s*DO\s+NOTHING$`
	mock.ExpectExec(q).
		WithArgs(syncID, common.KindSync, "QjE=", deviceID, t0, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	g := &models.SyncGroup{SyncID: syncID, Kind: common.KindSync, EncryptedBlob: "QjE=", DeviceID: deviceID, CreatedAt: t0}
	require.NoError(t, repo.Create(context.Background(), g))
	assert.Equal(t, int64(1), g.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ShareMetadata(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := t0.Add(7 * 24 * time.Hour)
	limit := int64(3)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+sync_groups`).
		WithArgs(syncID, common.KindShare, "QjE=", deviceID, t0, "education", expires, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	g := &models.SyncGroup{
		SyncID: syncID, Kind: common.KindShare, EncryptedBlob: "QjE=", DeviceID: deviceID, CreatedAt: t0,
		RecipientType: "education", ExpiresAt: &expires, MaxViews: &limit,
	}
	require.NoError(t, repo.Create(context.Background(), g))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ConflictWhenNothingInserted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+sync_groups`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &models.SyncGroup{SyncID: syncID, Kind: common.KindSync})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+sync_groups`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.SyncGroup{SyncID: syncID, Kind: common.KindSync})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := t0.Add(time.Hour)
	rows := sqlmock.NewRows(groupCols).
		AddRow(syncID, common.KindShare, "QjI=", int64(1), deviceID, t0, t0, "medical", expires, int64(2), int64(1))
	mock.ExpectQuery(`(?s)^SELECT\s+sync_id,.*FROM\s+sync_groups\s+WHERE\s+sync_id\s*=\s*\$1$`).
		WithArgs(syncID).
		WillReturnRows(rows)

	g, err := repo.Get(context.Background(), syncID)
	require.NoError(t, err)
	assert.Equal(t, "medical", g.RecipientType)
	require.NotNil(t, g.ExpiresAt)
	assert.True(t, g.ExpiresAt.Equal(expires))
	require.NotNil(t, g.MaxViews)
	assert.Equal(t, int64(2), *g.MaxViews)
	assert.Equal(t, int64(1), g.ViewCount)
}

func TestGet_NullShareFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(groupCols).
		AddRow(syncID, common.KindSync, "QjI=", int64(4), deviceID, t0, t0, nil, nil, nil, int64(0))
	mock.ExpectQuery(`(?s)^SELECT`).WithArgs(syncID).WillReturnRows(rows)

	g, err := repo.Get(context.Background(), syncID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), g.Version)
	assert.Nil(t, g.ExpiresAt)
	assert.Nil(t, g.MaxViews)
	assert.Empty(t, g.RecipientType)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT`).WithArgs(syncID).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), syncID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPush_IncrementsInOneStatement(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+sync_groups\s+SET\s+encrypted_blob\s*=\s*\$2,\s*device_id\s*=\s*\$3,\s*version\s*=\s*version\s*\+\s*1,.*WHERE\s+sync_id\s*=\s*\$1\s+AND\s+kind\s*=\s*'sync'\s+RETURNING\s+version$`
	mock.ExpectQuery(q).
		WithArgs(syncID, "QjI=", deviceID, t0).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))

	v, err := repo.Push(context.Background(), syncID, deviceID, "QjI=", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestPush_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+sync_groups`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Push(context.Background(), syncID, deviceID, "QjI=", t0)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestConsumeView_ConditionalUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+sync_groups\s+SET\s+view_count\s*=\s*view_count\s*\+\s*1.*expires_at\s*>\s*\$2.*view_count\s*<\s*max_views.*RETURNING`
	rows := sqlmock.NewRows(groupCols).
		AddRow(syncID, common.KindShare, "QjI=", int64(1), deviceID, t0, t0, "custom", t0.Add(time.Hour), int64(2), int64(2))
	mock.ExpectQuery(q).WithArgs(syncID, t0).WillReturnRows(rows)

	g, err := repo.ConsumeView(context.Background(), syncID, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.ViewCount)
}

func TestConsumeView_NothingConsumed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+sync_groups`).WillReturnError(sql.ErrNoRows)

	_, err := repo.ConsumeView(context.Background(), syncID, t0)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+sync_groups\s+WHERE\s+sync_id\s*=\s*\$1$`).
		WithArgs(syncID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+sync_groups`).
		WithArgs(syncID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Delete(context.Background(), syncID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(context.Background(), syncID)
	require.NoError(t, err)
	assert.Zero(t, n, "second delete is a no-op")
}

func TestListPurgeable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := t0.Add(-180 * 24 * time.Hour)
	rows := sqlmock.NewRows(groupCols).
		AddRow(syncID, common.KindSync, "QjE=", int64(9), deviceID, cutoff, cutoff, nil, nil, nil, int64(0)).
		AddRow(deviceID, common.KindShare, "QjI=", int64(1), syncID, t0, t0, "custom", t0, nil, int64(0))
	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+\(kind = 'sync' AND updated_at < \$1\)\s+OR\s+\(kind = 'share' AND expires_at <= \$2\).*LIMIT\s+\$3$`).
		WithArgs(cutoff, t0, 100).
		WillReturnRows(rows)

	out, err := repo.ListPurgeable(context.Background(), cutoff, t0, 100)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, syncID, out[0].SyncID)
	assert.True(t, out[1].IsShare())
}

func TestDeleteByIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+sync_groups\s+WHERE\s+sync_id\s+IN\s+\(\$1,\s*\$2\)$`).
		WithArgs(syncID, deviceID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteByIDs(context.Background(), []string{syncID, deviceID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.DeleteByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
