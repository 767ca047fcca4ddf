package models

import "time"

// SyncState is the device's view of its sync group. Key is the raw
// envelope key; LastVersion is the last version seen from the server.
type SyncState struct {
	SyncID      string
	Key         []byte
	DeviceID    string
	LastVersion int64
	Dirty       bool
	LastPullAt  *time.Time
	LastPushAt  *time.Time
}
