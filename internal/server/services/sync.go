// Package services contains server-side business logic. SyncService
// implements the sync group store: create, pull, push, delete and the
// health probe. It never decodes or decrypts blobs.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/dbx"
	"github.com/dmitrijs2005/manylla-sync/internal/logging"
	"github.com/dmitrijs2005/manylla-sync/internal/server/config"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/repomanager"
)

// Share expiry bounds accepted on create, in hours.
const (
	MinShareExpiryHours = 1
	MaxShareExpiryHours = int(common.MaxShareExpiry / time.Hour)
)

// ShareParams carries the optional share metadata of a create request.
// ExpiryHours of zero selects the default lifetime.
type ShareParams struct {
	RecipientType string
	ExpiryHours   int
	MaxViews      *int64
}

type CreateRequest struct {
	SyncID        string
	EncryptedBlob string
	DeviceID      string
	DeviceName    string
	Share         *ShareParams
	// Identity is the caller's network identity, stored only as a salted hash.
	Identity string
}

type PushRequest struct {
	SyncID        string
	DeviceID      string
	EncryptedBlob string
	SyncType      string
}

type PullResult struct {
	EncryptedBlob string
	Version       int64
}

// Health statuses.
const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	DBStatusConnected  = "connected"
	DBStatusDisconnect = "disconnected"
)

type HealthStatus struct {
	Status   string
	Database string
}

type SyncService struct {
	repomanager repomanager.RepositoryManager
	shares      *ShareService
	maxBlobSize int
	backupKeep  int
	ipHashSalt  string
	logger      logging.Logger
	now         func() time.Time
}

func NewSyncService(m repomanager.RepositoryManager, shares *ShareService, cfg *config.Config, logger logging.Logger) *SyncService {
	return &SyncService{
		repomanager: m,
		shares:      shares,
		maxBlobSize: int(cfg.MaxBlobSize),
		backupKeep:  cfg.BackupKeep,
		ipHashSalt:  cfg.IPHashSalt,
		logger:      logger.With("module", "sync_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *SyncService) validateShare(p *ShareParams) (*ShareParams, error) {
	out := *p
	out.RecipientType = strings.TrimSpace(out.RecipientType)
	if out.RecipientType == "" {
		out.RecipientType = common.DefaultRecipientType
	}
	if len(out.RecipientType) > common.MaxRecipientTypeLength {
		return nil, common.NewValidationError("recipient_type", fmt.Sprintf("must be at most %d characters", common.MaxRecipientTypeLength))
	}
	if out.ExpiryHours == 0 {
		out.ExpiryHours = int(common.DefaultShareExpiry / time.Hour)
	}
	if out.ExpiryHours < MinShareExpiryHours || out.ExpiryHours > MaxShareExpiryHours {
		return nil, common.NewValidationError("expiry_hours", fmt.Sprintf("must be between %d and %d", MinShareExpiryHours, MaxShareExpiryHours))
	}
	if out.MaxViews != nil && *out.MaxViews < 1 {
		return nil, common.NewValidationError("max_views", "must be at least 1")
	}
	return &out, nil
}

// Create stores a new sync group or share at version 1.
func (s *SyncService) Create(ctx context.Context, req CreateRequest) (int64, error) {
	if err := common.ValidateSyncID(req.SyncID); err != nil {
		return 0, err
	}
	if err := common.ValidateDeviceID(req.DeviceID); err != nil {
		return 0, err
	}
	if err := common.ValidateBlob(req.EncryptedBlob, s.maxBlobSize); err != nil {
		return 0, err
	}
	if err := common.ValidateDeviceName(req.DeviceName); err != nil {
		return 0, err
	}

	now := s.now()
	g := &models.SyncGroup{
		SyncID:        req.SyncID,
		Kind:          common.KindSync,
		EncryptedBlob: req.EncryptedBlob,
		DeviceID:      req.DeviceID,
		CreatedAt:     now,
	}
	event := &models.Event{SyncID: req.SyncID, Event: models.EventSyncCreated, IPHash: HashIdentity(s.ipHashSalt, req.Identity), CreatedAt: now}

	if req.Share != nil {
		p, err := s.validateShare(req.Share)
		if err != nil {
			return 0, err
		}
		expires := now.Add(time.Duration(p.ExpiryHours) * time.Hour)
		g.Kind = common.KindShare
		g.RecipientType = p.RecipientType
		g.ExpiresAt = &expires
		g.MaxViews = p.MaxViews

		event.Event = models.EventShareCreated
		event.Metadata = map[string]any{"recipient_type": p.RecipientType, "expiry_hours": p.ExpiryHours}
		if p.MaxViews != nil {
			event.Metadata["max_views"] = *p.MaxViews
		}
	}

	name := req.DeviceName
	if name == "" {
		name = common.DefaultDeviceName
	}

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.SyncGroups(tx).Create(ctx, g); err != nil {
			return err
		}
		if err := s.repomanager.Devices(tx).Touch(ctx, &models.Device{SyncID: g.SyncID, DeviceID: req.DeviceID, DeviceName: name, LastSeen: now}); err != nil {
			return err
		}
		return s.repomanager.Events(tx).Record(ctx, event)
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return 0, err
		}
		s.logger.Error(ctx, "create failed", "sync_id", req.SyncID, "error", err)
		return 0, fmt.Errorf("create: %w", err)
	}

	s.logger.Info(ctx, "sync group created", "sync_id", g.SyncID, "kind", g.Kind)
	return g.Version, nil
}

// Pull returns the current blob. Shares are read through the access gate,
// so a successful pull of a share consumes one view; any refusal surfaces
// as common.ErrNotFound here.
func (s *SyncService) Pull(ctx context.Context, syncID, deviceID, identity string) (*PullResult, error) {
	if err := common.ValidateSyncID(syncID); err != nil {
		return nil, err
	}
	if err := common.ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}

	g, err := s.repomanager.SyncGroups(s.repomanager.Conn()).Get(ctx, syncID)
	if err != nil {
		return nil, err
	}

	if g.IsShare() {
		consumed, err := s.shares.consume(ctx, syncID, identity)
		if err != nil {
			if errors.Is(err, common.ErrForbidden) {
				return nil, fmt.Errorf("%w: %v", common.ErrNotFound, err)
			}
			return nil, err
		}
		return &PullResult{EncryptedBlob: consumed.EncryptedBlob, Version: consumed.Version}, nil
	}

	err = s.repomanager.Devices(s.repomanager.Conn()).Touch(ctx, &models.Device{SyncID: syncID, DeviceID: deviceID, LastSeen: s.now()})
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Warn(ctx, "device bookkeeping failed", "sync_id", syncID, "error", err)
	}

	return &PullResult{EncryptedBlob: g.EncryptedBlob, Version: g.Version}, nil
}

// Push replaces the blob wholesale and returns the new version. Versions
// are assigned by the store in a single statement, so concurrent pushes
// receive consecutive, distinct versions. The superseded blob is kept as a
// backup; only the most recent backupKeep of them survive a push.
func (s *SyncService) Push(ctx context.Context, req PushRequest) (int64, error) {
	if err := common.ValidateSyncID(req.SyncID); err != nil {
		return 0, err
	}
	if err := common.ValidateDeviceID(req.DeviceID); err != nil {
		return 0, err
	}
	if err := common.ValidateBlob(req.EncryptedBlob, s.maxBlobSize); err != nil {
		return 0, err
	}
	if err := common.ValidateSyncType(req.SyncType); err != nil {
		return 0, err
	}

	now := s.now()
	var version int64

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if s.backupKeep > 0 {
			if err := s.repomanager.Backups(tx).Snapshot(ctx, req.SyncID, now); err != nil {
				return err
			}
		}
		v, err := s.repomanager.SyncGroups(tx).Push(ctx, req.SyncID, req.DeviceID, req.EncryptedBlob, now)
		if err != nil {
			return err
		}
		version = v
		if err := s.repomanager.Devices(tx).Touch(ctx, &models.Device{SyncID: req.SyncID, DeviceID: req.DeviceID, LastSeen: now}); err != nil {
			return err
		}
		if s.backupKeep > 0 {
			_, err = s.repomanager.Backups(tx).Prune(ctx, req.SyncID, s.backupKeep)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return 0, err
		}
		s.logger.Error(ctx, "push failed", "sync_id", req.SyncID, "error", err)
		return 0, fmt.Errorf("push: %w", err)
	}

	s.logger.Debug(ctx, "pushed", "sync_id", req.SyncID, "version", version)
	return version, nil
}

// Delete removes the group with its device rows. Unknown ids delete nothing
// and are not an error.
func (s *SyncService) Delete(ctx context.Context, syncID, deviceID, identity string) (int64, error) {
	if err := common.ValidateSyncID(syncID); err != nil {
		return 0, err
	}
	if err := common.ValidateDeviceID(deviceID); err != nil {
		return 0, err
	}

	var deleted int64
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.SyncGroups(tx).Delete(ctx, syncID)
		if err != nil {
			return err
		}
		deleted = n
		if n == 0 {
			return nil
		}
		return s.repomanager.Events(tx).Record(ctx, &models.Event{
			SyncID:    syncID,
			Event:     models.EventSyncDeleted,
			IPHash:    HashIdentity(s.ipHashSalt, identity),
			Metadata:  map[string]any{"device_id": deviceID},
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		s.logger.Error(ctx, "delete failed", "sync_id", syncID, "error", err)
		return 0, fmt.Errorf("delete: %w", err)
	}

	if deleted > 0 {
		s.logger.Info(ctx, "sync group deleted", "sync_id", syncID)
	}
	return deleted, nil
}

// Health pings the store. It has no side effects.
func (s *SyncService) Health(ctx context.Context) HealthStatus {
	if err := s.repomanager.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "database ping failed", "error", err)
		return HealthStatus{Status: StatusDegraded, Database: DBStatusDisconnect}
	}
	return HealthStatus{Status: StatusHealthy, Database: DBStatusConnected}
}

// GroupInfo is the operator view of a sync group. It never includes the blob.
type GroupInfo struct {
	Group   *models.SyncGroup
	Devices []*models.Device
	Events  []*models.Event
	// Backups carry sizes and versions only.
	Backups []*models.Backup
}

// Inspect returns metadata, devices, backups and recent events of a group.
func (s *SyncService) Inspect(ctx context.Context, syncID string) (*GroupInfo, error) {
	if err := common.ValidateSyncID(syncID); err != nil {
		return nil, err
	}
	conn := s.repomanager.Conn()

	g, err := s.repomanager.SyncGroups(conn).Get(ctx, syncID)
	if err != nil {
		return nil, err
	}
	g.EncryptedBlob = ""

	devices, err := s.repomanager.Devices(conn).List(ctx, syncID)
	if err != nil {
		return nil, err
	}
	events, err := s.repomanager.Events(conn).ListBySyncID(ctx, syncID, 50)
	if err != nil {
		return nil, err
	}
	backups, err := s.repomanager.Backups(conn).List(ctx, syncID)
	if err != nil {
		return nil, err
	}
	return &GroupInfo{Group: g, Devices: devices, Events: events, Backups: backups}, nil
}
