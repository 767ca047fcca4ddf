package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/logging"
)

const (
	DefaultPushDebounce = 2 * time.Second
	DefaultPullInterval = 60 * time.Second
)

// Syncer drives a SyncService in the background. Local edits reported via
// Changed are coalesced and pushed once the debounce window stays quiet.
// Remote changes are pulled on a fixed interval and on Resume.
//
// All network work happens on the Run goroutine, so at most one push is in
// flight at any time.
type Syncer struct {
	svc          SyncService
	debounce     time.Duration
	pullInterval time.Duration
	logger       logging.Logger

	changed chan struct{}
	resume  chan struct{}
}

func NewSyncer(svc SyncService, debounce, pullInterval time.Duration, logger logging.Logger) *Syncer {
	if debounce <= 0 {
		debounce = DefaultPushDebounce
	}
	if pullInterval <= 0 {
		pullInterval = DefaultPullInterval
	}
	return &Syncer{
		svc:          svc,
		debounce:     debounce,
		pullInterval: pullInterval,
		logger:       logger.With("module", "syncer"),
		changed:      make(chan struct{}, 1),
		resume:       make(chan struct{}, 1),
	}
}

// Changed reports a local edit. It never blocks.
func (s *Syncer) Changed() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Resume asks for an immediate pull, e.g. when the app comes to the
// foreground. It never blocks.
func (s *Syncer) Resume() {
	select {
	case s.resume <- struct{}{}:
	default:
	}
}

// Run loops until ctx is done. Failures are logged and retried on the next
// tick; the local profile stays usable offline meanwhile.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pullInterval)
	defer ticker.Stop()

	debounce := time.NewTimer(s.debounce)
	debounce.Stop()
	defer debounce.Stop()

	var (
		pending bool
		armed   bool
	)

	// a newer remote profile wins over unpushed edits
	refresh := func() {
		replaced, err := s.svc.Pull(ctx)
		if err != nil {
			s.logger.Warn(ctx, "pull failed", "error", err)
		}
		if replaced {
			pending = false
			if armed {
				debounce.Stop()
				armed = false
			}
			return
		}
		if pending && !armed {
			pending = !s.push(ctx)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-s.changed:
			if err := s.svc.MarkDirty(ctx); err != nil {
				s.logger.Warn(ctx, "failed to mark profile dirty", "error", err)
			}
			pending = true
			armed = true
			debounce.Reset(s.debounce)

		case <-debounce.C:
			armed = false
			pending = !s.push(ctx)

		case <-ticker.C:
			refresh()

		case <-s.resume:
			refresh()
		}
	}
}

func (s *Syncer) push(ctx context.Context) bool {
	if _, err := s.svc.Push(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn(ctx, "push failed, will retry", "error", err)
		}
		return false
	}
	return true
}
