package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/manylla-sync/internal/client/client"
	"github.com/dmitrijs2005/manylla-sync/internal/client/models"
	"github.com/dmitrijs2005/manylla-sync/internal/client/repositories/state"
	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/dmitrijs2005/manylla-sync/internal/cryptox"
	"github.com/dmitrijs2005/manylla-sync/internal/logging"
)

// DefaultShareBaseURL is where share links point when no base is configured.
const DefaultShareBaseURL = "https://manylla.com/qual"

const sharePathSegment = "/share/"

var (
	// ErrInvalidFragment means a share link is not of the form token#key.
	ErrInvalidFragment = fmt.Errorf("%w: invalid share link", common.ErrValidation)

	// ErrCorruptShare means the share was found but could not be opened with
	// the key from the link.
	ErrCorruptShare = fmt.Errorf("%w: share is corrupt or has been tampered with", common.ErrAuthentication)
)

// IssuedShare is the result of Issue. URL is the only place the key lives.
type IssuedShare struct {
	URL   string
	Share *models.Share
}

// ShareService issues read-only shares of a profile and opens shares
// issued by others.
type ShareService interface {
	Issue(ctx context.Context, profile *models.Profile, opts models.ShareOptions) (*IssuedShare, error)
	Open(ctx context.Context, link string) (*models.OpenedShare, error)
	// List returns shares issued from this device that have not expired.
	List(ctx context.Context) ([]*models.Share, error)
	Revoke(ctx context.Context, syncID string) error
}

type shareService struct {
	client     client.Client
	repo       state.Repository
	baseURL    string
	deviceID   string
	deviceName string
	logger     logging.Logger
	options
}

func NewShareService(c client.Client, repo state.Repository, baseURL, deviceID, deviceName string, logger logging.Logger, opts ...Option) ShareService {
	if baseURL == "" {
		baseURL = DefaultShareBaseURL
	}
	return &shareService{
		client:     c,
		repo:       repo,
		baseURL:    strings.TrimRight(baseURL, "/"),
		deviceID:   deviceID,
		deviceName: deviceName,
		logger:     logger.With("module", "share_service"),
		options:    newOptions(opts),
	}
}

func validateShareOptions(opts *models.ShareOptions) error {
	if !slices.Contains(models.ShareExpirationDays, opts.ExpirationDays) {
		return common.NewValidationError("expiration_days", fmt.Sprintf("must be one of %v", models.ShareExpirationDays))
	}
	if len(opts.Categories) == 0 {
		return common.NewValidationError("categories", "select at least one category")
	}

	opts.RecipientType = strings.TrimSpace(opts.RecipientType)
	if opts.RecipientType == "" {
		opts.RecipientType = common.DefaultRecipientType
	}
	if utf8.RuneCountInString(opts.RecipientType) > common.MaxRecipientTypeLength {
		return common.NewValidationError("recipient_type", fmt.Sprintf("must be at most %d characters", common.MaxRecipientTypeLength))
	}
	if opts.MaxViews != nil && *opts.MaxViews < 1 {
		return common.NewValidationError("max_views", "must be positive")
	}
	return nil
}

// Issue seals the selected part of profile under a fresh key into a new
// share group. Excluded categories never leave the device, not even
// encrypted.
func (s *shareService) Issue(ctx context.Context, profile *models.Profile, opts models.ShareOptions) (*IssuedShare, error) {
	if profile == nil {
		return nil, common.NewValidationError("profile", "required")
	}
	if err := validateShareOptions(&opts); err != nil {
		return nil, err
	}

	key, err := cryptox.GenerateKey()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	syncID, err := common.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate share id: %w", err)
	}

	lifetime := time.Duration(opts.ExpirationDays) * 24 * time.Hour
	now := s.now()
	doc := models.SharedDocument{
		Profile:   profile.FilterForShare(opts.Categories, opts.IncludePhoto),
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
		Version:   models.SharedDocumentVersion,
	}

	env, err := cryptox.Encrypt(doc, key)
	if err != nil {
		return nil, err
	}

	// not retried: a create that landed but timed out would come back as a
	// conflict, and the caller can simply issue again
	_, err = s.client.Create(ctx, client.CreateRequest{
		SyncID:     syncID,
		Envelope:   env,
		DeviceID:   s.deviceID,
		DeviceName: s.deviceName,
		Share: &client.ShareMeta{
			RecipientType: opts.RecipientType,
			ExpiryHours:   int(lifetime / time.Hour),
			MaxViews:      opts.MaxViews,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}

	share := &models.Share{
		SyncID:        syncID,
		RecipientType: opts.RecipientType,
		Categories:    slices.Clone(opts.Categories),
		CreatedAt:     now,
		ExpiresAt:     doc.ExpiresAt,
		MaxViews:      opts.MaxViews,
	}
	if err := s.repo.AddShare(ctx, share); err != nil {
		s.logger.Warn(ctx, "failed to remember issued share", "sync_id", syncID, "error", err)
	}

	s.logger.Info(ctx, "share issued",
		"sync_id", syncID, "recipient_type", opts.RecipientType,
		"categories", len(opts.Categories), "expires_at", doc.ExpiresAt)

	return &IssuedShare{
		URL:   ShareURL(s.baseURL, syncID, cryptox.EncodeKey(key)),
		Share: share,
	}, nil
}

// ShareURL composes <base>/share/<token>#<key>.
func ShareURL(base, token, key string) string {
	return strings.TrimRight(base, "/") + sharePathSegment + token + "#" + key
}

// ParseShareLink extracts the token and key from a share link. Accepted
// forms are a bare token#key, <base>#token#key and <base>/share/token#key.
func ParseShareLink(link string) (string, []byte, error) {
	link = strings.TrimSpace(link)

	i := strings.LastIndex(link, "#")
	if i < 0 {
		return "", nil, fmt.Errorf("%w: missing '#' separator", ErrInvalidFragment)
	}
	keyPart, rest := link[i+1:], link[:i]

	token := rest
	if j := strings.LastIndex(rest, "#"); j >= 0 {
		token = rest[j+1:]
	} else if j := strings.LastIndex(rest, sharePathSegment); j >= 0 {
		token = rest[j+len(sharePathSegment):]
	}
	token = strings.ToLower(strings.Trim(token, "/"))

	if token == "" {
		return "", nil, fmt.Errorf("%w: missing token", ErrInvalidFragment)
	}
	if keyPart == "" {
		return "", nil, fmt.Errorf("%w: missing key", ErrInvalidFragment)
	}
	if !common.IsValidID(token) {
		return "", nil, fmt.Errorf("%w: malformed token", ErrInvalidFragment)
	}

	key, err := cryptox.DecodeKey(keyPart)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidFragment, err)
	}
	return token, key, nil
}

// Open fetches and decrypts a share. Each successful open consumes one
// view on the server. Gate refusals come back as common.ErrNotFound,
// common.ErrShareExpired or common.ErrShareExhausted; a share that does
// not open with the link's key yields ErrCorruptShare.
func (s *shareService) Open(ctx context.Context, link string) (*models.OpenedShare, error) {
	token, key, err := ParseShareLink(link)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	acc, err := s.client.AccessShare(ctx, token)
	if err != nil {
		return nil, err
	}

	var doc models.SharedDocument
	if err := cryptox.Decrypt(acc.Envelope, key, &doc); err != nil {
		s.logger.Warn(ctx, "share failed to decrypt", "sync_id", token)
		return nil, ErrCorruptShare
	}
	if doc.Version != models.SharedDocumentVersion || doc.Profile == nil {
		s.logger.Warn(ctx, "share has unexpected document version", "sync_id", token, "version", doc.Version)
		return nil, ErrCorruptShare
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.OpenedShare{
		Profile:        doc.Profile,
		RecipientType:  acc.RecipientType,
		CreatedAt:      acc.CreatedAt,
		ExpiresAt:      acc.ExpiresAt,
		HoursRemaining: acc.HoursRemaining,
		ViewCount:      acc.ViewCount,
		MaxViews:       acc.MaxViews,
		ViewsRemaining: acc.ViewsRemaining,
	}, nil
}

func (s *shareService) List(ctx context.Context) ([]*models.Share, error) {
	if n, err := s.repo.PurgeExpiredShares(ctx, s.now()); err != nil {
		return nil, err
	} else if n > 0 {
		s.logger.Debug(ctx, "purged expired shares", "count", n)
	}
	return s.repo.ListShares(ctx)
}

// Revoke deletes a share on the server and forgets it locally.
func (s *shareService) Revoke(ctx context.Context, syncID string) error {
	syncID = strings.ToLower(strings.TrimSpace(syncID))
	if err := common.ValidateSyncID(syncID); err != nil {
		return err
	}

	if _, err := withRetry(ctx, s.retry, s.logger, "revoke", func(ctx context.Context) (int64, error) {
		return s.client.Delete(ctx, syncID, s.deviceID)
	}); err != nil {
		return fmt.Errorf("revoke share: %w", err)
	}
	return s.repo.DeleteShare(ctx, syncID)
}

// AccessMessage renders a share-open failure for the person holding the link.
func AccessMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, common.ErrShareExpired):
		return "This link has expired."
	case errors.Is(err, common.ErrShareExhausted):
		return "This link was already fully used."
	case errors.Is(err, ErrCorruptShare):
		return "This link appears to be damaged. Ask the sender for a new one."
	case errors.Is(err, common.ErrRateLimited):
		return "Too many attempts. Please wait a moment and try again."
	case errors.Is(err, client.ErrUnavailable):
		return "The server can't be reached right now. Please try again later."
	case errors.Is(err, ErrInvalidFragment),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrForbidden):
		return "This link appears invalid."
	default:
		return "Something went wrong opening this link."
	}
}
