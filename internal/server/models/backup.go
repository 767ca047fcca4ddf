package models

import "time"

// Backup is a superseded version of a sync group's blob. Size is the length
// of the stored blob text; listings leave EncryptedBlob empty.
type Backup struct {
	ID            string
	SyncID        string
	Version       int64
	DeviceID      string
	EncryptedBlob string
	Size          int64
	CreatedAt     time.Time
}
