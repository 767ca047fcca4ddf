package models

import "time"

// Event names recorded in the audit log.
const (
	EventSyncCreated   = "sync_created"
	EventSyncDeleted   = "sync_deleted"
	EventShareCreated  = "share_created"
	EventShareAccessed = "share_accessed"
	EventShareDenied   = "share_denied"
	EventPurged        = "purged"
)

// Event is an audit record. IPHash is a salted hash of the client address;
// raw addresses are never stored.
type Event struct {
	ID        string
	SyncID    string
	Event     string
	IPHash    string
	Metadata  map[string]any
	CreatedAt time.Time
}
