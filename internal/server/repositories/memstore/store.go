// Package memstore is an in-process implementation of the server
// repositories, used by tests and by "-m memory" development runs. Each
// operation holds the store lock for its whole duration, which gives the
// same per-row atomicity the SQL statements provide.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/server/models"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/backups"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/events"
	"github.com/dmitrijs2005/manylla-sync/internal/server/repositories/syncgroups"
	"github.com/google/uuid"
)

type Store struct {
	mu      sync.Mutex
	groups  map[string]*models.SyncGroup
	devices map[string]map[string]*models.Device
	events  []*models.Event
	backups map[string][]*models.Backup
}

func New() *Store {
	return &Store{
		groups:  make(map[string]*models.SyncGroup),
		devices: make(map[string]map[string]*models.Device),
		backups: make(map[string][]*models.Backup),
	}
}

func cloneGroup(g *models.SyncGroup) *models.SyncGroup {
	c := *g
	if g.ExpiresAt != nil {
		t := *g.ExpiresAt
		c.ExpiresAt = &t
	}
	if g.MaxViews != nil {
		n := *g.MaxViews
		c.MaxViews = &n
	}
	return &c
}

// SyncGroups implements syncgroups.Repository.
type SyncGroups struct{ s *Store }

// Devices implements devices.Repository.
type Devices struct{ s *Store }

// Events implements events.Repository.
type Events struct{ s *Store }

// Backups implements backups.Repository.
type Backups struct{ s *Store }

func (s *Store) SyncGroups() *SyncGroups { return &SyncGroups{s: s} }
func (s *Store) Devices() *Devices       { return &Devices{s: s} }
func (s *Store) Events() *Events         { return &Events{s: s} }
func (s *Store) Backups() *Backups       { return &Backups{s: s} }

var (
	_ syncgroups.Repository = (*SyncGroups)(nil)
	_ devices.Repository    = (*Devices)(nil)
	_ events.Repository     = (*Events)(nil)
	_ backups.Repository    = (*Backups)(nil)
)

func (r *SyncGroups) Create(ctx context.Context, g *models.SyncGroup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.groups[g.SyncID]; ok {
		return common.ErrConflict
	}
	g.Version = 1
	g.UpdatedAt = g.CreatedAt
	g.ViewCount = 0
	r.s.groups[g.SyncID] = cloneGroup(g)
	return nil
}

func (r *SyncGroups) Get(ctx context.Context, syncID string) (*models.SyncGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.groups[syncID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (r *SyncGroups) Push(ctx context.Context, syncID, deviceID, blob string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.groups[syncID]
	if !ok || g.IsShare() {
		return 0, common.ErrNotFound
	}
	g.EncryptedBlob = blob
	g.DeviceID = deviceID
	g.Version++
	g.UpdatedAt = now
	return g.Version, nil
}

func (r *SyncGroups) ConsumeView(ctx context.Context, syncID string, now time.Time) (*models.SyncGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.groups[syncID]
	if !ok || !g.IsShare() || g.Expired(now) || g.Exhausted() {
		return nil, common.ErrNotFound
	}
	g.ViewCount++
	return cloneGroup(g), nil
}

func (r *SyncGroups) Delete(ctx context.Context, syncID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.deleteLocked(syncID), nil
}

func (s *Store) deleteLocked(syncID string) int64 {
	if _, ok := s.groups[syncID]; !ok {
		return 0
	}
	delete(s.groups, syncID)
	delete(s.devices, syncID)
	delete(s.backups, syncID)
	return 1
}

func (r *SyncGroups) ListPurgeable(ctx context.Context, inactiveBefore, now time.Time, limit int) ([]*models.SyncGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.SyncGroup
	for _, g := range r.s.groups {
		// shares live until they expire, however long ago they were written
		if g.IsShare() && g.Expired(now) || !g.IsShare() && g.UpdatedAt.Before(inactiveBefore) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SyncGroups) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, id := range ids {
		n += r.s.deleteLocked(id)
	}
	return n, nil
}

func (r *Devices) Touch(ctx context.Context, d *models.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.groups[d.SyncID]; !ok {
		return common.ErrNotFound
	}
	byDevice, ok := r.s.devices[d.SyncID]
	if !ok {
		byDevice = make(map[string]*models.Device)
		r.s.devices[d.SyncID] = byDevice
	}

	existing, ok := byDevice[d.DeviceID]
	if !ok {
		c := *d
		c.FirstSeen = d.LastSeen
		byDevice[d.DeviceID] = &c
		return nil
	}
	existing.LastSeen = d.LastSeen
	if d.DeviceName != "" {
		existing.DeviceName = d.DeviceName
	}
	return nil
}

func (r *Devices) List(ctx context.Context, syncID string) ([]*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Device
	for _, d := range r.s.devices[syncID] {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

func (r *Events) Record(ctx context.Context, e *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	c := *e
	r.s.events = append(r.s.events, &c)
	return nil
}

func (r *Events) ListBySyncID(ctx context.Context, syncID string, limit int) ([]*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Event
	for i := len(r.s.events) - 1; i >= 0; i-- {
		if r.s.events[i].SyncID != syncID {
			continue
		}
		c := *r.s.events[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *Events) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.events[:0]
	var n int64
	for _, e := range r.s.events {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.events = kept
	return n, nil
}

func (r *Backups) Snapshot(ctx context.Context, syncID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.groups[syncID]
	if !ok || g.IsShare() {
		return nil
	}
	for _, b := range r.s.backups[syncID] {
		if b.Version == g.Version {
			return nil
		}
	}
	r.s.backups[syncID] = append(r.s.backups[syncID], &models.Backup{
		ID:            uuid.NewString(),
		SyncID:        syncID,
		Version:       g.Version,
		DeviceID:      g.DeviceID,
		EncryptedBlob: g.EncryptedBlob,
		Size:          int64(len(g.EncryptedBlob)),
		CreatedAt:     now,
	})
	return nil
}

func (r *Backups) List(ctx context.Context, syncID string) ([]*models.Backup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.Backup, 0, len(r.s.backups[syncID]))
	for _, b := range r.s.backups[syncID] {
		c := *b
		c.EncryptedBlob = ""
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *Backups) Prune(ctx context.Context, syncID string, keep int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	list := r.s.backups[syncID]
	if len(list) <= keep {
		return 0, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Version > list[j].Version })
	n := int64(len(list) - keep)
	r.s.backups[syncID] = list[:keep]
	return n, nil
}
