package client

import (
	"context"
	"time"
)

type CreateRequest struct {
	SyncID     string
	Envelope   []byte
	DeviceID   string
	DeviceName string
	Share      *ShareMeta
}

// ShareMeta is sent with a create that issues a share.
type ShareMeta struct {
	RecipientType string
	ExpiryHours   int
	MaxViews      *int64
}

type PushRequest struct {
	SyncID   string
	DeviceID string
	Envelope []byte
	SyncType string
}

type Snapshot struct {
	Envelope []byte
	Version  int64
}

type Health struct {
	Status   string
	Database string
}

type ShareAccess struct {
	Envelope       []byte
	RecipientType  string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	HoursRemaining int64
	ViewCount      int64
	MaxViews       *int64
	ViewsRemaining *int64
}

type Client interface {
	Health(ctx context.Context) (*Health, error)
	Create(ctx context.Context, req CreateRequest) (int64, error)
	Pull(ctx context.Context, syncID, deviceID string) (*Snapshot, error)
	Push(ctx context.Context, req PushRequest) (int64, error)
	Delete(ctx context.Context, syncID, deviceID string) (int64, error)
	AccessShare(ctx context.Context, accessCode string) (*ShareAccess, error)
}
