package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL, 2*time.Second)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewHTTPClient_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "://x"} {
		_, err := NewHTTPClient(u, time.Second)
		assert.Error(t, err, u)
	}
}

func TestCreate_SendsBase64AndShareMeta(t *testing.T) {
	env := []byte{0x02, 0x00, 0xff, 0x10}
	maxViews := int64(3)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/create", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, cryptox.EncodeBase64(env), body["encrypted_blob"])
		assert.Equal(t, "phone", body["device_name"])
		share := body["share"].(map[string]any)
		assert.Equal(t, "teacher", share["recipient_type"])
		assert.EqualValues(t, 168, share["expiry_hours"])
		assert.EqualValues(t, 3, share["max_views"])

		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "version": 1})
	})

	v, err := c.Create(context.Background(), CreateRequest{
		SyncID: "a", Envelope: env, DeviceID: "d", DeviceName: "phone",
		Share: &ShareMeta{RecipientType: "teacher", ExpiryHours: 168, MaxViews: &maxViews},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestPull_DecodesEnvelope(t *testing.T) {
	env := []byte("envelope-bytes")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s1", r.URL.Query().Get("sync_id"))
		assert.Equal(t, "d1", r.URL.Query().Get("device_id"))
		writeJSON(w, http.StatusOK, map[string]any{"encrypted_blob": cryptox.EncodeBase64(env), "version": 7})
	})

	snap, err := c.Pull(context.Background(), "s1", "d1")
	require.NoError(t, err)
	assert.Equal(t, env, snap.Envelope)
	assert.Equal(t, int64(7), snap.Version)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{"validation", http.StatusBadRequest, map[string]string{"error": "bad id", "code": "invalid_input"}, common.ErrValidation},
		{"not found", http.StatusNotFound, map[string]string{"code": "not_found"}, common.ErrNotFound},
		{"conflict", http.StatusConflict, map[string]string{"code": "conflict"}, common.ErrConflict},
		{"expired", http.StatusForbidden, map[string]string{"code": "share_expired"}, common.ErrShareExpired},
		{"exhausted", http.StatusForbidden, map[string]string{"code": "share_exhausted"}, common.ErrShareExhausted},
		{"forbidden", http.StatusForbidden, map[string]string{}, common.ErrForbidden},
		{"server error", http.StatusInternalServerError, map[string]string{"code": "internal"}, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, "oops", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.Push(context.Background(), PushRequest{SyncID: "s", DeviceID: "d", Envelope: []byte("x")})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRateLimit(t *testing.T) {
	reset := time.Now().Add(30 * time.Second).Unix()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"code": "rate_limited"})
	})

	_, err := c.Health(context.Background())
	require.ErrorIs(t, err, common.ErrRateLimited)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 12*time.Second, rl.RetryAfter)
	assert.Equal(t, reset, rl.Reset.Unix())
	assert.True(t, IsRetryable(err))
}

func TestTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestCanceledContextIsNotUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Health(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

func TestAccessShare(t *testing.T) {
	env := []byte("sealed")
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "code", in["access_code"])
		writeJSON(w, http.StatusOK, map[string]any{
			"encrypted_data":  cryptox.EncodeBase64(env),
			"recipient_type":  "babysitter",
			"created_at":      created,
			"expires_at":      created.Add(48 * time.Hour),
			"hours_remaining": 47,
			"view_count":      1,
			"max_views":       nil,
			"views_remaining": nil,
		})
	})

	a, err := c.AccessShare(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, env, a.Envelope)
	assert.Equal(t, "babysitter", a.RecipientType)
	assert.Equal(t, int64(47), a.HoursRemaining)
	assert.Nil(t, a.MaxViews)
	assert.True(t, a.CreatedAt.Equal(created))
}

func TestDeleteAndHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/delete":
			writeJSON(w, http.StatusOK, map[string]int{"deleted_count": 1})
		case "/health":
			writeJSON(w, http.StatusOK, map[string]string{"status": "degraded", "database": "disconnected"})
		}
	})

	n, err := c.Delete(context.Background(), "s", "d")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "disconnected", h.Database)
}
