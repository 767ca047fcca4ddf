// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
)

// SyncGroup is one stored unit: either a device-sync group holding a full
// encrypted profile, or a share artifact bounded by expiry and views.
// EncryptedBlob is opaque base64 text and is never parsed server-side.
type SyncGroup struct {
	SyncID        string
	Kind          string
	EncryptedBlob string
	Version       int64
	DeviceID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Share-only fields.
	RecipientType string
	ExpiresAt     *time.Time
	MaxViews      *int64
	ViewCount     int64
}

func (g *SyncGroup) IsShare() bool {
	return g.Kind == common.KindShare
}

// Expired reports whether a share can no longer be read at now.
func (g *SyncGroup) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// Exhausted reports whether a share has used up its view budget.
func (g *SyncGroup) Exhausted() bool {
	return g.MaxViews != nil && g.ViewCount >= *g.MaxViews
}

// ViewsRemaining is nil for shares without a view limit.
func (g *SyncGroup) ViewsRemaining() *int64 {
	if g.MaxViews == nil {
		return nil
	}
	left := *g.MaxViews - g.ViewCount
	if left < 0 {
		left = 0
	}
	return &left
}

// HoursRemaining is the number of whole hours until expiry, never negative.
func (g *SyncGroup) HoursRemaining(now time.Time) int64 {
	if g.ExpiresAt == nil {
		return 0
	}
	d := g.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Hour)
}
