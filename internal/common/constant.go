package common

import "time"

const (
	// IDLength is the length of sync and device identifiers in hex characters.
	IDLength = 32

	// KeyLength is the size of an envelope key in bytes.
	KeyLength = 32

	// DefaultMaxBlobSize bounds the base64 text of an encrypted blob.
	DefaultMaxBlobSize = 5 * 1024 * 1024

	// MaxDeviceNameLength bounds the optional human-readable device name.
	MaxDeviceNameLength = 100

	// MaxRecipientTypeLength bounds the share recipient label.
	MaxRecipientTypeLength = 50

	// DefaultDeviceName is stored when a client omits device_name.
	DefaultDeviceName = "Unknown Device"

	// DefaultRecipientType is stored when a share omits recipient_type.
	DefaultRecipientType = "custom"

	// DefaultShareExpiry applies when a share request carries no expiry.
	DefaultShareExpiry = 168 * time.Hour

	// MaxShareExpiry is the longest lifetime a share may request.
	MaxShareExpiry = 365 * 24 * time.Hour
)

// Sync types accepted by push.
const (
	SyncTypeFull        = "full"
	SyncTypeIncremental = "incremental"
)

// Kinds of sync group rows.
const (
	KindSync  = "sync"
	KindShare = "share"
)
