package models

import "time"

// Device records the last time a device touched a sync group.
type Device struct {
	SyncID     string
	DeviceID   string
	DeviceName string
	FirstSeen  time.Time
	LastSeen   time.Time
}
