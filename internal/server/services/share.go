package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/dmitrijs2005/manylla-sync/internal/server/config"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/repomanager"
)

// ShareAccess is what a successful share read returns. ViewCount counts
// this read. MaxViews and ViewsRemaining are nil for unlimited shares.
type ShareAccess struct {
	EncryptedData  string
	RecipientType  string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	HoursRemaining int64
	ViewCount      int64
	MaxViews       *int64
	ViewsRemaining *int64
}

// ShareService is the access gate for share artifacts. Checks run in order:
// format, existence, expiry, view budget, then an atomic view increment.
// Rate limiting happens before this service is reached.
type ShareService struct {
	repomanager repomanager.RepositoryManager
	ipHashSalt  string
	logger      logging.Logger
	now         func() time.Time
}

func NewShareService(m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *ShareService {
	return &ShareService{
		repomanager: m,
		ipHashSalt:  cfg.IPHashSalt,
		logger:      logger.With("module", "share_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Access reads a share by its access code (the share's sync id) and
// consumes one view. Expired and exhausted shares yield
// common.ErrShareExpired and common.ErrShareExhausted; unknown codes
// yield common.ErrNotFound.
func (s *ShareService) Access(ctx context.Context, accessCode, identity string) (*ShareAccess, error) {
	if !common.IsValidID(accessCode) {
		return nil, common.NewValidationError("access_code", "must be 32 lowercase hex characters")
	}

	g, err := s.consume(ctx, accessCode, identity)
	if err != nil {
		return nil, err
	}

	out := &ShareAccess{
		EncryptedData:  g.EncryptedBlob,
		RecipientType:  g.RecipientType,
		CreatedAt:      g.CreatedAt,
		HoursRemaining: g.HoursRemaining(s.now()),
		ViewCount:      g.ViewCount,
		MaxViews:       g.MaxViews,
		ViewsRemaining: g.ViewsRemaining(),
	}
	if g.ExpiresAt != nil {
		out.ExpiresAt = *g.ExpiresAt
	}
	return out, nil
}

func (s *ShareService) consume(ctx context.Context, syncID, identity string) (*models.SyncGroup, error) {
	repo := s.repomanager.SyncGroups(s.repomanager.Conn())
	now := s.now()

	g, err := repo.Get(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if !g.IsShare() {
		return nil, common.ErrNotFound
	}
	if denied := s.refusal(g, now); denied != nil {
		s.deny(ctx, syncID, identity, denied)
		return nil, denied
	}

	updated, err := repo.ConsumeView(ctx, syncID, now)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("consume view: %w", err)
		}
		// Lost a race with another reader or with expiry; classify again.
		g, err = repo.Get(ctx, syncID)
		if err != nil {
			return nil, err
		}
		denied := s.refusal(g, now)
		if denied == nil {
			denied = common.ErrShareExhausted
		}
		s.deny(ctx, syncID, identity, denied)
		return nil, denied
	}

	s.record(ctx, &models.Event{
		SyncID:    syncID,
		Event:     models.EventShareAccessed,
		IPHash:    HashIdentity(s.ipHashSalt, identity),
		Metadata:  map[string]any{"view_count": updated.ViewCount},
		CreatedAt: now,
	})
	s.logger.Info(ctx, "share accessed", "sync_id", syncID, "view_count", updated.ViewCount)

	return updated, nil
}

func (s *ShareService) refusal(g *models.SyncGroup, now time.Time) error {
	switch {
	case g.Expired(now):
		return common.ErrShareExpired
	case g.Exhausted():
		return common.ErrShareExhausted
	}
	return nil
}

func (s *ShareService) deny(ctx context.Context, syncID, identity string, reason error) {
	r := "exhausted"
	if errors.Is(reason, common.ErrShareExpired) {
		r = "expired"
	}
	s.record(ctx, &models.Event{
		SyncID:    syncID,
		Event:     models.EventShareDenied,
		IPHash:    HashIdentity(s.ipHashSalt, identity),
		Metadata:  map[string]any{"reason": r},
		CreatedAt: s.now(),
	})
	s.logger.Info(ctx, "share denied", "sync_id", syncID, "reason", r)
}

// record writes an audit event. Failures are logged and do not fail the read.
func (s *ShareService) record(ctx context.Context, e *models.Event) {
	if err := s.repomanager.Events(s.repomanager.Conn()).Record(ctx, e); err != nil {
		s.logger.Warn(ctx, "audit event not recorded", "event", e.Event, "sync_id", e.SyncID, "error", err)
	}
}
