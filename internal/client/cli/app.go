package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/client"
	"github.com/dmitrijs2005/manylla-sync/internal/client/config"
	"github.com/dmitrijs2005/manylla-sync/internal/client/repositories/state"
	"github.com/dmitrijs2005/manylla-sync/internal/client/services"
	"github.com/dmitrijs2005/manylla-sync/internal/filex"
	"github.com/dmitrijs2005/manylla-sync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// App wires the client services for one CLI invocation.
type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	client   client.Client
	state    state.Repository
	store    *FileProfileStore
	sync     services.SyncService
	shares   services.ShareService
	deviceID string
	Mode     Mode

	in  *bufio.Reader
	out io.Writer
}

func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	logger := logging.NewText(os.Stderr, c.LogLevel)

	if err := filex.EnsureParentDir(c.StatePath); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	db, err := client.InitDatabase(ctx, c.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	repo := state.NewSQLiteRepository(db)
	deviceID, err := services.EnsureDeviceID(ctx, repo)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store := NewFileProfileStore(c.ProfilePath)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		client:   api,
		state:    repo,
		store:    store,
		sync:     services.NewSyncService(api, repo, store, deviceID, c.DeviceName, logger),
		shares:   services.NewShareService(api, repo, c.ShareBaseURL, deviceID, c.DeviceName, logger),
		deviceID: deviceID,
		in:       bufio.NewReader(in),
		out:      out,
	}, nil
}

func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) setMode(mode Mode) {
	if a.Mode == mode {
		return
	}
	a.Mode = mode
	if mode == ModeOnline {
		printOK(a.out, "server reachable, sync is %s", mode)
	} else {
		printWarn(a.out, "server unreachable, working %s", mode)
	}
}

// StartOnlineStatusWatcher probes the server every interval and reports
// transitions between online and offline.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.checkOnline(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	probe, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	_, err := a.client.Health(probe)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}
