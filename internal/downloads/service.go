package downloads

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/internal/entitlements"
	"github.com/wavecraftaudio/wavecraft-backend/internal/releases"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/ghrelease"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/metrics"
)

const downloadPath = "/api/v1/downloads/file"

type releaseFinder interface {
	FindByVersion(ctx context.Context, version string) (*releases.ReleaseDescriptor, error)
}

type entitlementSource interface {
	ResolveEntitlements(ctx context.Context, customer *models.Customer) (*entitlements.Resolution, error)
}

type assetStreamer interface {
	DownloadAsset(ctx context.Context, apiURL, browserURL string) (*ghrelease.AssetStream, error)
}

// TokenGrant is the successful outcome of a token request.
type TokenGrant struct {
	DownloadURL string    `json:"download_url"`
	Version     string    `json:"version"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Download is an open asset stream plus the metadata the HTTP layer needs
// to set response headers. Close the stream when done.
type Download struct {
	Stream  *ghrelease.AssetStream
	Release releases.ReleaseDescriptor
}

// Service mints and redeems download tokens. Entitlement is enforced at
// both ends: token mint re-runs the policy, and the download endpoint
// re-verifies the token and re-resolves the release.
type Service interface {
	RequestToken(ctx context.Context, customer *models.Customer, version string) (*TokenGrant, error)
	StreamDownload(ctx context.Context, customer *models.Customer, token string) (*Download, error)
}

type service struct {
	catalog      releaseFinder
	entitlements entitlementSource
	host         assetStreamer
	logger       *logger.Logger
	metrics      *metrics.DownloadMetrics
	secret       string
	tokenTTL     time.Duration
	now          func() time.Time
}

// NewService builds the download token service. The signing secret must
// already be resolved through the configured fallback chain.
func NewService(
	catalog releaseFinder,
	entitlementSvc entitlementSource,
	host assetStreamer,
	secret string,
	cfg config.DownloadsConfig,
	logg *logger.Logger,
	downloadMetrics *metrics.DownloadMetrics,
) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("release catalog required")
	}
	if entitlementSvc == nil {
		return nil, fmt.Errorf("entitlement service required")
	}
	if host == nil {
		return nil, fmt.Errorf("release host required")
	}
	if secret == "" {
		return nil, fmt.Errorf("signing secret required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &service{
		catalog:      catalog,
		entitlements: entitlementSvc,
		host:         host,
		logger:       logg,
		metrics:      downloadMetrics,
		secret:       secret,
		tokenTTL:     ttl,
		now:          time.Now,
	}, nil
}

// RequestToken re-runs the entitlement policy for the requested version and
// mints a short-lived token when access is allowed. A stale allowed flag
// from an earlier listing is never trusted.
func (s *service) RequestToken(ctx context.Context, customer *models.Customer, version string) (*TokenGrant, error) {
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	release, err := s.catalog.FindByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("release %q not found", version))
	}

	resolution, err := s.entitlements.ResolveEntitlements(ctx, customer)
	if err != nil {
		return nil, err
	}
	if !entitlements.ReleaseAllowed(release.PublishedAt, resolution.Licenses, s.now()) {
		s.metrics.IncTokenIssued("denied")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no entitlement covers this release")
	}

	expiresAt := s.now().Add(s.tokenTTL)
	token, err := CreateToken(TokenPayload{
		CustomerID: customer.ID,
		Version:    release.Version,
		ExpiresAt:  expiresAt.UnixMilli(),
	}, s.secret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting download token")
	}

	s.metrics.IncTokenIssued("allowed")
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"version":    release.Version,
		"expires_at": expiresAt,
	})
	s.logger.Info(logCtx, "download token issued")

	return &TokenGrant{
		DownloadURL: downloadPath + "?token=" + url.QueryEscape(token),
		Version:     release.Version,
		ExpiresAt:   expiresAt,
	}, nil
}

// StreamDownload redeems a token: verifies signature and expiry,
// re-resolves the release, and opens the asset stream. The token itself is
// the credential; a session is optional, but when one is present it must
// belong to the customer the token was minted for.
func (s *service) StreamDownload(ctx context.Context, customer *models.Customer, token string) (*Download, error) {
	payload, err := VerifyToken(token, s.secret, s.now())
	if err != nil || (customer != nil && payload.CustomerID != customer.ID) {
		s.metrics.IncDownload("invalid_token")
		// One opaque rejection for every failure mode; the token format
		// must not be probeable.
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "invalid download token")
	}

	release, err := s.catalog.FindByVersion(ctx, payload.Version)
	if err != nil {
		return nil, err
	}
	if release == nil {
		s.metrics.IncDownload("release_missing")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("release %q not found", payload.Version))
	}

	started := s.now()
	stream, err := s.host.DownloadAsset(ctx, release.AssetAPIURL, release.AssetURL)
	if err != nil {
		s.metrics.IncDownload("asset_unavailable")
		s.metrics.ObserveDuration("asset_unavailable", s.now().Sub(started))
		return nil, err
	}

	s.metrics.IncDownload("success")
	s.metrics.ObserveDuration("success", s.now().Sub(started))
	logCtx := s.logger.WithField(ctx, "version", release.Version)
	s.logger.Info(logCtx, "download stream opened")

	return &Download{Stream: stream, Release: *release}, nil
}
