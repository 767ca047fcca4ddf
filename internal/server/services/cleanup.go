package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/dmitrijs2005/manylla-sync/internal/server/config"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/repomanager"
)

// Archiver keeps a copy of a group's ciphertext before it is purged.
type Archiver interface {
	Archive(ctx context.Context, g *models.SyncGroup) error
}

type CleanupReport struct {
	Scanned      int64 `json:"scanned"`
	Archived     int64 `json:"archived"`
	Deleted      int64 `json:"deleted"`
	Skipped      int64 `json:"skipped"`
	EventsPurged int64 `json:"events_purged"`
}

// CleanupService purges groups idle longer than the retention period and
// shares past expiry, in batches. Groups whose archive upload fails are
// left in place for the next run.
type CleanupService struct {
	repomanager repomanager.RepositoryManager
	archiver    Archiver
	retention   time.Duration
	batchSize   int
	logger      logging.Logger
	now         func() time.Time
}

// NewCleanupService builds the service; archiver may be nil.
func NewCleanupService(m repomanager.RepositoryManager, archiver Archiver, cfg *config.Config, logger logging.Logger) *CleanupService {
	return &CleanupService{
		repomanager: m,
		archiver:    archiver,
		retention:   cfg.Retention,
		batchSize:   cfg.CleanupBatchSize,
		logger:      logger.With("module", "cleanup_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs one full cleanup pass.
func (s *CleanupService) RunOnce(ctx context.Context) (*CleanupReport, error) {
	now := s.now()
	cutoff := now.Add(-s.retention)
	repo := s.repomanager.SyncGroups(s.repomanager.Conn())
	report := &CleanupReport{}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch, err := repo.ListPurgeable(ctx, cutoff, now, s.batchSize)
		if err != nil {
			return report, fmt.Errorf("list purgeable: %w", err)
		}
		report.Scanned += int64(len(batch))

		ids := make([]string, 0, len(batch))
		for _, g := range batch {
			if s.archiver != nil {
				if err := s.archiver.Archive(ctx, g); err != nil {
					s.logger.Warn(ctx, "archive failed, keeping row", "sync_id", g.SyncID, "error", err)
					report.Skipped++
					continue
				}
				report.Archived++
			}
			ids = append(ids, g.SyncID)
		}

		n, err := repo.DeleteByIDs(ctx, ids)
		if err != nil {
			return report, fmt.Errorf("delete batch: %w", err)
		}
		report.Deleted += n

		// A short batch is the last one; a batch with nothing deletable
		// would be listed again forever.
		if len(batch) < s.batchSize || len(ids) == 0 {
			break
		}
	}

	purged, err := s.repomanager.Events(s.repomanager.Conn()).PurgeBefore(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("purge events: %w", err)
	}
	report.EventsPurged = purged

	s.logger.Info(ctx, "cleanup finished",
		"scanned", report.Scanned, "archived", report.Archived, "deleted", report.Deleted,
		"skipped", report.Skipped, "events_purged", report.EventsPurged)
	return report, nil
}

// Run repeats RunOnce every interval until ctx is done.
func (s *CleanupService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "cleanup failed", "error", err)
			}
		}
	}
}
