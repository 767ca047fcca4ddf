// Package repomanager vends repository implementations bound to a
// connection or transaction, and owns schema migrations.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/manylla-sync/internal/dbx"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/backups"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/events"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/syncgroups"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Conn is the non-transactional handle for single-statement work.
	Conn() dbx.DBTX
	// WithTx runs fn in one transaction; repositories built from tx share it.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error

	SyncGroups(db dbx.DBTX) syncgroups.Repository
	Devices(db dbx.DBTX) devices.Repository
	Events(db dbx.DBTX) events.Repository
	Backups(db dbx.DBTX) backups.Repository
}
