package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/client"
	"github.com/dmitrijs2005/manylla-sync/internal/client/models"
	"github.com/dmitrijs2005/manylla-sync/internal/client/repositories/state"
	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/stretchr/testify/require"
)

const (
	testDeviceID = "dddddddddddddddddddddddddddddddd"
	testPhrase   = "0123456789abcdef0123456789abcdef"
)

var fastRetry = RetryPolicy{Base: time.Millisecond, Max: 5 * time.Millisecond, MaxRetries: 3}

// fakeClient embeds client.Client; only the funcs a test sets are usable.
type fakeClient struct {
	client.Client

	mu    sync.Mutex
	calls map[string]int

	CreateFn func(ctx context.Context, req client.CreateRequest) (int64, error)
	PullFn   func(ctx context.Context, syncID, deviceID string) (*client.Snapshot, error)
	PushFn   func(ctx context.Context, req client.PushRequest) (int64, error)
	DeleteFn func(ctx context.Context, syncID, deviceID string) (int64, error)
	AccessFn func(ctx context.Context, code string) (*client.ShareAccess, error)
}

func (f *fakeClient) hit(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[op]++
}

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) Create(ctx context.Context, req client.CreateRequest) (int64, error) {
	f.hit("create")
	return f.CreateFn(ctx, req)
}

func (f *fakeClient) Pull(ctx context.Context, syncID, deviceID string) (*client.Snapshot, error) {
	f.hit("pull")
	return f.PullFn(ctx, syncID, deviceID)
}

func (f *fakeClient) Push(ctx context.Context, req client.PushRequest) (int64, error) {
	f.hit("push")
	return f.PushFn(ctx, req)
}

func (f *fakeClient) Delete(ctx context.Context, syncID, deviceID string) (int64, error) {
	f.hit("delete")
	return f.DeleteFn(ctx, syncID, deviceID)
}

func (f *fakeClient) AccessShare(ctx context.Context, code string) (*client.ShareAccess, error) {
	f.hit("access")
	return f.AccessFn(ctx, code)
}

type memStore struct {
	mu       sync.Mutex
	profile  *models.Profile
	replaced int
}

func (m *memStore) Load(context.Context) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil, common.ErrNotFound
	}
	return m.profile, nil
}

func (m *memStore) Replace(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = p
	m.replaced++
	return nil
}

func newStateRepo(t *testing.T) state.Repository {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return state.NewSQLiteRepository(db)
}

func sampleProfile(name string) *models.Profile {
	return &models.Profile{
		ID:    "child-1",
		Name:  name,
		Photo: "data:image/jpeg;base64,/9j/4AAQ",
		Entries: []models.Entry{
			{ID: "e1", Category: "medical", Title: "Peanut allergy"},
			{ID: "e2", Category: "education", Title: "IEP goals"},
			{ID: "e3", Category: "behaviors", Title: "Meltdown triggers"},
		},
		Categories: []models.Category{
			{ID: "c1", Name: "medical", DisplayName: "Medical"},
			{ID: "c2", Name: "education", DisplayName: "Education"},
			{ID: "c3", Name: "behaviors", DisplayName: "Behaviors"},
		},
		QuickInfoPanels: []models.QuickInfoPanel{{ID: "q1", Name: "communication", Value: "non-verbal"}},
		CreatedAt:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func nopLogger() logging.Logger { return logging.Nop() }
