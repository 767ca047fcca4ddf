// Package server wires the sync server together: storage, services, rate
// limiting, the HTTP API, the gRPC health probe and the cleanup loop, and
// runs them until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/dmitrijs2005/manylla-sync/internal/server/config"
	"github.com/dmitrijs2005/manylla-sync/internal/server/httpapi"
	"github.com/dmitrijs2005/manylla-sync/internal/server/ratelimit"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/manylla-sync/internal/server/services"

	gs "github.com/dmitrijs2005/manylla-sync/internal/server/grpc"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	repomanager    repomanager.RepositoryManager
	syncService    *services.SyncService
	shareService   *services.ShareService
	cleanupService *services.CleanupService
	limiter        *ratelimit.Limiter
	healthExempt   *ratelimit.ExemptList
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	rm, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	// A nil *S3Archiver must not end up inside the interface.
	var archiver services.Archiver
	s3a, err := services.NewS3Archiver(ctx, c)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("archiver init error: %w", err)
	}
	if s3a != nil {
		archiver = s3a
	}

	limiter, err := ratelimit.New(map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassSync:   {Limit: c.SyncRateLimit, Window: c.RateWindow},
		ratelimit.ClassShare:  {Limit: c.ShareRateLimit, Window: c.RateWindow},
		ratelimit.ClassHealth: {Limit: c.HealthRateLimit, Window: c.RateWindow},
	})
	if err != nil {
		_ = rm.Close()
		return nil, err
	}
	exempt, err := ratelimit.ParseExemptList(c.HealthExemptCIDRs)
	if err != nil {
		_ = rm.Close()
		return nil, err
	}

	shares := services.NewShareService(rm, c, logger)

	return &App{
		config:         c,
		logger:         logger,
		repomanager:    rm,
		syncService:    services.NewSyncService(rm, shares, c, logger),
		shareService:   shares,
		cleanupService: services.NewCleanupService(rm, archiver, c, logger),
		limiter:        limiter,
		healthExempt:   exempt,
	}, nil
}

func openStore(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	if c.Store == config.StoreMemory {
		return repomanager.NewInMemoryRepositoryManager(), nil
	}
	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return repomanager.NewPostgresRepositoryManager(db), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config, app.logger, app.syncService, app.shareService, app.cleanupService, app.limiter, app.healthExempt)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.repomanager, gs.DefaultProbeInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.Store)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.cleanupService.Run(ctx, app.config.CleanupInterval)
	}()
	go func() {
		defer wg.Done()
		app.limiter.RunSweeper(ctx, app.config.RateWindow)
	}()

	wg.Wait()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
