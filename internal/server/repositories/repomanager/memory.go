package repomanager

import (
	"context"

	"github.com/dmitrijs2005/manylla-sync/internal/dbx"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/backups"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/events"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/syncgroups"
)

// InMemoryRepositoryManager serves every repository from one memstore.Store.
// WithTx does not roll back; each repository call is atomic on its own.
type InMemoryRepositoryManager struct {
	store *memstore.Store
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{store: memstore.New()}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }
func (m *InMemoryRepositoryManager) Ping(ctx context.Context) error          { return nil }
func (m *InMemoryRepositoryManager) Close() error                            { return nil }
func (m *InMemoryRepositoryManager) Conn() dbx.DBTX                          { return nil }

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) SyncGroups(dbx.DBTX) syncgroups.Repository {
	return m.store.SyncGroups()
}

func (m *InMemoryRepositoryManager) Devices(dbx.DBTX) devices.Repository {
	return m.store.Devices()
}

func (m *InMemoryRepositoryManager) Events(dbx.DBTX) events.Repository {
	return m.store.Events()
}

func (m *InMemoryRepositoryManager) Backups(dbx.DBTX) backups.Repository {
	return m.store.Backups()
}
