package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/cryptox"
)

const maxErrorBody = 64 * 1024

type HTTPClient struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// NewHTTPClient talks to the server at baseURL. Every request is bounded
// by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
		}
		return nil
	}

	return c.mapError(resp)
}

// mapError turns a non-2xx answer into a sentinel error.
func (c *HTTPClient) mapError(resp *http.Response) error {
	var ae apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&ae)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrValidation, ae.Error)
	case http.StatusForbidden:
		switch ae.Code {
		case "share_expired":
			return common.ErrShareExpired
		case "share_exhausted":
			return common.ErrShareExhausted
		}
		return common.ErrForbidden
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusConflict:
		return common.ErrConflict
	case http.StatusUnauthorized:
		return common.ErrUnauthorized
	case http.StatusTooManyRequests:
		return c.rateLimitError(resp.Header)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, ae.Error)
}

func (c *HTTPClient) rateLimitError(h http.Header) *RateLimitError {
	now := c.now()
	e := &RateLimitError{}
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	if unix, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		e.Reset = time.Unix(unix, 0)
	}
	if e.RetryAfter == 0 && !e.Reset.IsZero() && e.Reset.After(now) {
		e.RetryAfter = e.Reset.Sub(now)
	}
	if e.RetryAfter == 0 {
		e.RetryAfter = time.Second
	}
	if e.Reset.IsZero() {
		e.Reset = now.Add(e.RetryAfter)
	}
	return e
}

func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	var out struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &Health{Status: out.Status, Database: out.Database}, nil
}

type shareMetaBody struct {
	RecipientType string `json:"recipient_type"`
	ExpiryHours   int    `json:"expiry_hours"`
	MaxViews      *int64 `json:"max_views,omitempty"`
}

func (c *HTTPClient) Create(ctx context.Context, req CreateRequest) (int64, error) {
	in := struct {
		SyncID        string         `json:"sync_id"`
		EncryptedBlob string         `json:"encrypted_blob"`
		DeviceID      string         `json:"device_id"`
		DeviceName    string         `json:"device_name,omitempty"`
		Share         *shareMetaBody `json:"share,omitempty"`
	}{
		SyncID:        req.SyncID,
		EncryptedBlob: cryptox.EncodeBase64(req.Envelope),
		DeviceID:      req.DeviceID,
		DeviceName:    req.DeviceName,
	}
	if req.Share != nil {
		in.Share = &shareMetaBody{RecipientType: req.Share.RecipientType, ExpiryHours: req.Share.ExpiryHours, MaxViews: req.Share.MaxViews}
	}

	var out struct {
		Version int64 `json:"version"`
	}
	if err := c.do(ctx, http.MethodPost, "/create", nil, in, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

func (c *HTTPClient) Pull(ctx context.Context, syncID, deviceID string) (*Snapshot, error) {
	var out struct {
		EncryptedBlob string `json:"encrypted_blob"`
		Version       int64  `json:"version"`
	}
	q := url.Values{"sync_id": {syncID}, "device_id": {deviceID}}
	if err := c.do(ctx, http.MethodGet, "/pull", q, nil, &out); err != nil {
		return nil, err
	}

	env, err := cryptox.DecodeBase64(out.EncryptedBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthentication, err)
	}
	return &Snapshot{Envelope: env, Version: out.Version}, nil
}

func (c *HTTPClient) Push(ctx context.Context, req PushRequest) (int64, error) {
	in := struct {
		SyncID        string `json:"sync_id"`
		DeviceID      string `json:"device_id"`
		EncryptedBlob string `json:"encrypted_blob"`
		SyncType      string `json:"sync_type,omitempty"`
	}{req.SyncID, req.DeviceID, cryptox.EncodeBase64(req.Envelope), req.SyncType}

	var out struct {
		Version int64 `json:"version"`
	}
	if err := c.do(ctx, http.MethodPost, "/push", nil, in, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

func (c *HTTPClient) Delete(ctx context.Context, syncID, deviceID string) (int64, error) {
	in := struct {
		SyncID   string `json:"sync_id"`
		DeviceID string `json:"device_id"`
	}{syncID, deviceID}

	var out struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	if err := c.do(ctx, http.MethodPost, "/delete", nil, in, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}

func (c *HTTPClient) AccessShare(ctx context.Context, accessCode string) (*ShareAccess, error) {
	in := struct {
		AccessCode string `json:"access_code"`
	}{accessCode}

	var out struct {
		EncryptedData  string    `json:"encrypted_data"`
		RecipientType  string    `json:"recipient_type"`
		CreatedAt      time.Time `json:"created_at"`
		ExpiresAt      time.Time `json:"expires_at"`
		HoursRemaining int64     `json:"hours_remaining"`
		ViewCount      int64     `json:"view_count"`
		MaxViews       *int64    `json:"max_views"`
		ViewsRemaining *int64    `json:"views_remaining"`
	}
	if err := c.do(ctx, http.MethodPost, "/share/access", nil, in, &out); err != nil {
		return nil, err
	}

	env, err := cryptox.DecodeBase64(out.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthentication, err)
	}
	return &ShareAccess{
		Envelope:       env,
		RecipientType:  out.RecipientType,
		CreatedAt:      out.CreatedAt,
		ExpiresAt:      out.ExpiresAt,
		HoursRemaining: out.HoursRemaining,
		ViewCount:      out.ViewCount,
		MaxViews:       out.MaxViews,
		ViewsRemaining: out.ViewsRemaining,
	}, nil
}
