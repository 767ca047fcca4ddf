package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/server/services"
	"github.com/gorilla/mux"
)

type shareMeta struct {
	RecipientType string `json:"recipient_type"`
	ExpiryHours   int    `json:"expiry_hours"`
	MaxViews      *int64 `json:"max_views"`
}

type createRequest struct {
	SyncID        string     `json:"sync_id"`
	EncryptedBlob string     `json:"encrypted_blob"`
	DeviceID      string     `json:"device_id"`
	DeviceName    string     `json:"device_name"`
	Share         *shareMeta `json:"share,omitempty"`
}

type createResponse struct {
	Success bool  `json:"success"`
	Version int64 `json:"version"`
}

type pullResponse struct {
	EncryptedBlob string `json:"encrypted_blob"`
	Version       int64  `json:"version"`
}

type pushRequest struct {
	SyncID        string `json:"sync_id"`
	DeviceID      string `json:"device_id"`
	EncryptedBlob string `json:"encrypted_blob"`
	SyncType      string `json:"sync_type"`
}

type pushResponse struct {
	Version int64 `json:"version"`
}

type deleteRequest struct {
	SyncID   string `json:"sync_id"`
	DeviceID string `json:"device_id"`
}

type deleteResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type shareAccessRequest struct {
	AccessCode string `json:"access_code"`
}

type shareAccessResponse struct {
	EncryptedData  string    `json:"encrypted_data"`
	RecipientType  string    `json:"recipient_type"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	HoursRemaining int64     `json:"hours_remaining"`
	ViewCount      int64     `json:"view_count"`
	MaxViews       *int64    `json:"max_views"`
	ViewsRemaining *int64    `json:"views_remaining"`
}

type groupResponse struct {
	SyncID        string           `json:"sync_id"`
	Kind          string           `json:"kind"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	RecipientType string           `json:"recipient_type,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	MaxViews      *int64           `json:"max_views,omitempty"`
	ViewCount     int64            `json:"view_count"`
	Devices       []deviceResponse `json:"devices"`
	Events        []eventResponse  `json:"events"`
	Backups       []backupResponse `json:"backups"`
}

type backupResponse struct {
	Version   int64     `json:"version"`
	DeviceID  string    `json:"device_id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type deviceResponse struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

type eventResponse struct {
	Event     string         `json:"event"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// healthCheck reports database connectivity. A degraded store still
// answers 200 so monitors can read the body.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	h := s.sync.Health(r.Context())
	respondJSON(w, http.StatusOK, healthResponse{Status: h.Status, Database: h.Database})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	in := services.CreateRequest{
		SyncID:        req.SyncID,
		EncryptedBlob: req.EncryptedBlob,
		DeviceID:      req.DeviceID,
		DeviceName:    req.DeviceName,
		Identity:      clientIPFrom(r.Context()),
	}
	if req.Share != nil {
		in.Share = &services.ShareParams{
			RecipientType: req.Share.RecipientType,
			ExpiryHours:   req.Share.ExpiryHours,
			MaxViews:      req.Share.MaxViews,
		}
	}

	version, err := s.sync.Create(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createResponse{Success: true, Version: version})
}

func (s *Server) pull(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.sync.Pull(r.Context(), q.Get("sync_id"), q.Get("device_id"), clientIPFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pullResponse{EncryptedBlob: res.EncryptedBlob, Version: res.Version})
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	version, err := s.sync.Push(r.Context(), services.PushRequest{
		SyncID:        req.SyncID,
		DeviceID:      req.DeviceID,
		EncryptedBlob: req.EncryptedBlob,
		SyncType:      req.SyncType,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pushResponse{Version: version})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	n, err := s.sync.Delete(r.Context(), req.SyncID, req.DeviceID, clientIPFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, deleteResponse{DeletedCount: n})
}

func (s *Server) shareAccess(w http.ResponseWriter, r *http.Request) {
	var req shareAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	a, err := s.shares.Access(r.Context(), req.AccessCode, clientIPFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, shareAccessResponse{
		EncryptedData:  a.EncryptedData,
		RecipientType:  a.RecipientType,
		CreatedAt:      a.CreatedAt,
		ExpiresAt:      a.ExpiresAt,
		HoursRemaining: a.HoursRemaining,
		ViewCount:      a.ViewCount,
		MaxViews:       a.MaxViews,
		ViewsRemaining: a.ViewsRemaining,
	})
}

func (s *Server) adminCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := s.cleanup.RunOnce(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) adminGroup(w http.ResponseWriter, r *http.Request) {
	info, err := s.sync.Inspect(r.Context(), mux.Vars(r)["sync_id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	g := info.Group
	out := groupResponse{
		SyncID:        g.SyncID,
		Kind:          g.Kind,
		Version:       g.Version,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		RecipientType: g.RecipientType,
		ExpiresAt:     g.ExpiresAt,
		MaxViews:      g.MaxViews,
		ViewCount:     g.ViewCount,
		Devices:       make([]deviceResponse, 0, len(info.Devices)),
		Events:        make([]eventResponse, 0, len(info.Events)),
		Backups:       make([]backupResponse, 0, len(info.Backups)),
	}
	for _, d := range info.Devices {
		out.Devices = append(out.Devices, deviceResponse{DeviceID: d.DeviceID, DeviceName: d.DeviceName, FirstSeen: d.FirstSeen, LastSeen: d.LastSeen})
	}
	for _, e := range info.Events {
		out.Events = append(out.Events, eventResponse{Event: e.Event, Metadata: e.Metadata, CreatedAt: e.CreatedAt})
	}
	for _, b := range info.Backups {
		out.Backups = append(out.Backups, backupResponse{Version: b.Version, DeviceID: b.DeviceID, Size: b.Size, CreatedAt: b.CreatedAt})
	}
	respondJSON(w, http.StatusOK, out)
}
