package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/client/client"
	"github.com/dmitrijs2005/manylla-sync/internal/client/models"
	"github.com/dmitrijs2005/manylla-sync/internal/client/repositories/state"
	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/cryptox"
	"github.com/dmitrijs2005/manylla-sync/internal/logging"
)

var (
	ErrSyncNotEnabled     = errors.New("sync is not enabled on this device")
	ErrSyncAlreadyEnabled = errors.New("sync is already enabled on this device")
)

const metaDeviceID = "device_id"

// ProfileStore holds the plaintext profile on the device. Load returns
// common.ErrNotFound when there is no profile yet.
type ProfileStore interface {
	Load(ctx context.Context) (*models.Profile, error)
	Replace(ctx context.Context, p *models.Profile) error
}

// SyncStatus is a read-only snapshot of the local sync state.
type SyncStatus struct {
	Enabled     bool
	SyncID      string
	DeviceID    string
	LastVersion int64
	Dirty       bool
	LastPullAt  *time.Time
	LastPushAt  *time.Time
}

// SyncService keeps the local profile and its sync group in step.
//
// Conflicts resolve as last write wins: a pull that finds a newer remote
// version replaces the local profile wholesale, even when local edits have
// not been pushed yet.
type SyncService interface {
	// Enable creates a new sync group from phrase, or joins the existing one.
	Enable(ctx context.Context, phrase string, create bool) error
	// Disable forgets the sync group locally. The server copy is kept.
	Disable(ctx context.Context) error
	Status(ctx context.Context) (*SyncStatus, error)
	// Pull reports whether the local profile was replaced.
	Pull(ctx context.Context) (bool, error)
	Push(ctx context.Context) (int64, error)
	MarkDirty(ctx context.Context) error
	// DeleteRemote deletes the sync group on the server and disables sync.
	DeleteRemote(ctx context.Context) (int64, error)
}

type syncService struct {
	client     client.Client
	repo       state.Repository
	store      ProfileStore
	deviceID   string
	deviceName string
	logger     logging.Logger
	options
}

// NewSyncService builds a SyncService acting as deviceID. The device id is
// explicit so that every request made on behalf of this device carries the
// same identity; see EnsureDeviceID.
func NewSyncService(c client.Client, repo state.Repository, store ProfileStore, deviceID, deviceName string, logger logging.Logger, opts ...Option) SyncService {
	return &syncService{
		client:     c,
		repo:       repo,
		store:      store,
		deviceID:   deviceID,
		deviceName: deviceName,
		logger:     logger.With("module", "sync_service"),
		options:    newOptions(opts),
	}
}

// EnsureDeviceID returns this device's id, generating and persisting one on
// first use.
func EnsureDeviceID(ctx context.Context, repo state.Repository) (string, error) {
	id, ok, err := repo.GetMeta(ctx, metaDeviceID)
	if err != nil {
		return "", err
	}
	if ok && common.IsValidID(id) {
		return id, nil
	}

	id, err = common.NewID()
	if err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	if err := repo.SetMeta(ctx, metaDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *syncService) Enable(ctx context.Context, phrase string, create bool) error {
	if _, err := s.repo.Load(ctx); err == nil {
		return ErrSyncAlreadyEnabled
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	creds, err := cryptox.DeriveCredentials(phrase)
	if err != nil {
		return err
	}

	st := &models.SyncState{SyncID: creds.SyncID, Key: creds.Key, DeviceID: s.deviceID}

	if !create {
		if err := s.repo.Save(ctx, st); err != nil {
			return err
		}
		if _, err := s.Pull(ctx); err != nil {
			if cerr := s.repo.Clear(ctx); cerr != nil {
				s.logger.Error(ctx, "failed to roll back sync state", "error", cerr)
			}
			return fmt.Errorf("join sync group: %w", err)
		}
		s.logger.Info(ctx, "joined sync group", "sync_id", creds.SyncID)
		return nil
	}

	profile, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	env, err := cryptox.Encrypt(profile, creds.Key)
	if err != nil {
		return err
	}

	version, err := withRetry(ctx, s.retry, s.logger, "create", func(ctx context.Context) (int64, error) {
		return s.client.Create(ctx, client.CreateRequest{
			SyncID:     creds.SyncID,
			Envelope:   env,
			DeviceID:   s.deviceID,
			DeviceName: s.deviceName,
		})
	})
	if err != nil {
		return fmt.Errorf("create sync group: %w", err)
	}

	now := s.now()
	st.LastVersion = version
	st.LastPushAt = &now
	if err := s.repo.Save(ctx, st); err != nil {
		return err
	}
	s.logger.Info(ctx, "created sync group", "sync_id", creds.SyncID, "version", version)
	return nil
}

func (s *syncService) Disable(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

func (s *syncService) Status(ctx context.Context) (*SyncStatus, error) {
	st, err := s.repo.Load(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return &SyncStatus{DeviceID: s.deviceID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		Enabled:     true,
		SyncID:      st.SyncID,
		DeviceID:    s.deviceID,
		LastVersion: st.LastVersion,
		Dirty:       st.Dirty,
		LastPullAt:  st.LastPullAt,
		LastPushAt:  st.LastPushAt,
	}, nil
}

func (s *syncService) Pull(ctx context.Context) (bool, error) {
	st, err := s.loadState(ctx)
	if err != nil {
		return false, err
	}

	snap, err := withRetry(ctx, s.retry, s.logger, "pull", func(ctx context.Context) (*client.Snapshot, error) {
		return s.client.Pull(ctx, st.SyncID, s.deviceID)
	})
	if err != nil {
		return false, err
	}

	now := s.now()
	if snap.Version == st.LastVersion {
		return false, s.repo.RecordPull(ctx, st.LastVersion, now)
	}
	// a lower version means the group was deleted and created again
	// elsewhere; its content is newer than ours
	if snap.Version < st.LastVersion {
		s.logger.Warn(ctx, "remote sync group was reset, adopting it",
			"local_version", st.LastVersion, "remote_version", snap.Version)
	}

	var profile models.Profile
	if err := cryptox.Decrypt(snap.Envelope, st.Key, &profile); err != nil {
		return false, fmt.Errorf("decrypt remote profile: %w", err)
	}

	if st.Dirty {
		s.logger.Warn(ctx, "unpushed local changes replaced by newer remote profile",
			"local_version", st.LastVersion, "remote_version", snap.Version)
	}

	// the caller may have lost interest while we were decrypting
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := s.store.Replace(ctx, &profile); err != nil {
		return false, fmt.Errorf("replace local profile: %w", err)
	}
	if err := s.repo.RecordPull(ctx, snap.Version, now); err != nil {
		return true, err
	}
	if err := s.repo.SetDirty(ctx, false); err != nil {
		return true, err
	}

	s.logger.Info(ctx, "pulled profile", "version", snap.Version)
	return true, nil
}

func (s *syncService) Push(ctx context.Context) (int64, error) {
	st, err := s.loadState(ctx)
	if err != nil {
		return 0, err
	}

	profile, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load profile: %w", err)
	}
	env, err := cryptox.Encrypt(profile, st.Key)
	if err != nil {
		return 0, err
	}

	version, err := withRetry(ctx, s.retry, s.logger, "push", func(ctx context.Context) (int64, error) {
		return s.client.Push(ctx, client.PushRequest{
			SyncID:   st.SyncID,
			DeviceID: s.deviceID,
			Envelope: env,
			SyncType: common.SyncTypeFull,
		})
	})

	if errors.Is(err, common.ErrNotFound) {
		s.logger.Warn(ctx, "sync group missing on server, recreating", "sync_id", st.SyncID)
		version, err = withRetry(ctx, s.retry, s.logger, "create", func(ctx context.Context) (int64, error) {
			return s.client.Create(ctx, client.CreateRequest{
				SyncID:     st.SyncID,
				Envelope:   env,
				DeviceID:   s.deviceID,
				DeviceName: s.deviceName,
			})
		})
	}
	if err != nil {
		return 0, err
	}

	if err := s.repo.RecordPush(ctx, version, s.now()); err != nil {
		return version, err
	}
	s.logger.Info(ctx, "pushed profile", "version", version)
	return version, nil
}

func (s *syncService) MarkDirty(ctx context.Context) error {
	err := s.repo.SetDirty(ctx, true)
	if errors.Is(err, common.ErrNotFound) {
		return ErrSyncNotEnabled
	}
	return err
}

func (s *syncService) DeleteRemote(ctx context.Context) (int64, error) {
	st, err := s.loadState(ctx)
	if err != nil {
		return 0, err
	}

	n, err := withRetry(ctx, s.retry, s.logger, "delete", func(ctx context.Context) (int64, error) {
		return s.client.Delete(ctx, st.SyncID, s.deviceID)
	})
	if err != nil {
		return 0, err
	}
	if err := s.repo.Clear(ctx); err != nil {
		return n, err
	}
	s.logger.Info(ctx, "deleted sync group", "sync_id", st.SyncID, "deleted", n)
	return n, nil
}

func (s *syncService) loadState(ctx context.Context) (*models.SyncState, error) {
	st, err := s.repo.Load(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, ErrSyncNotEnabled
	}
	return st, err
}
