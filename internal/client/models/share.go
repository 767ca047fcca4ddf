package models

import "time"

// SharedDocumentVersion tags share payloads sealed in the versioned envelope.
const SharedDocumentVersion = 2

// SharedDocument is the plaintext sealed into a share.
type SharedDocument struct {
	Profile   *Profile  `json:"profile"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Version   int       `json:"version"`
}

// Allowed share lifetimes, in days.
var ShareExpirationDays = []int{7, 30, 90, 180}

// ShareOptions drive what a share exposes and for how long.
type ShareOptions struct {
	Categories     []string
	IncludePhoto   bool
	ExpirationDays int
	RecipientType  string
	MaxViews       *int64
}

// Share is an issued share as remembered by the issuing device. It never
// holds the key.
type Share struct {
	SyncID        string
	RecipientType string
	Categories    []string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	MaxViews      *int64
}

// OpenedShare is what a recipient sees after a successful open.
type OpenedShare struct {
	Profile        *Profile
	RecipientType  string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	HoursRemaining int64
	ViewCount      int64
	MaxViews       *int64
	ViewsRemaining *int64
}
