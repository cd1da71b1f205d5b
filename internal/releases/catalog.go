package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/ghrelease"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
	redisclient "github.com/wavecraftaudio/wavecraft-backend/pkg/redis"
)

// VersionLatest selects the newest published release.
const VersionLatest = "latest"

// ReleaseDescriptor is one downloadable release of the plugin. Immutable
// once published; Version carries no leading "v".
type ReleaseDescriptor struct {
	Version      string    `json:"version"`
	TagName      string    `json:"tag_name"`
	Name         string    `json:"name"`
	ReleaseNotes string    `json:"release_notes"`
	PublishedAt  time.Time `json:"published_at"`
	AssetName    string    `json:"asset_name"`
	AssetSize    int64     `json:"asset_size"`
	AssetURL     string    `json:"asset_url"`
	AssetAPIURL  string    `json:"asset_api_url,omitempty"`
}

type releaseHost interface {
	ListReleases(ctx context.Context) ([]ghrelease.Release, error)
}

type catalogCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type catalogKeyer interface {
	CatalogKey(repo string) string
}

// Catalog lists published releases for the fixed product repository,
// caching the mapped list briefly to bound calls to the release host.
// Releases are rare events, so staleness within the TTL is acceptable.
type Catalog struct {
	host        releaseHost
	cache       catalogCache
	keyer       catalogKeyer
	logger      *logger.Logger
	repo        string
	productSlug string
	assetExt    string
	cacheTTL    time.Duration
}

// NewCatalog builds the release catalog adapter.
func NewCatalog(host releaseHost, cache *redisclient.Client, cfg config.ReleasesConfig, logg *logger.Logger) (*Catalog, error) {
	if host == nil {
		return nil, fmt.Errorf("release host required")
	}
	if cache == nil {
		return nil, fmt.Errorf("catalog cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	slug := strings.ToLower(strings.TrimSpace(cfg.ProductSlug))
	if slug == "" {
		return nil, fmt.Errorf("product slug required")
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Catalog{
		host:        host,
		cache:       cache,
		keyer:       cache,
		logger:      logg,
		repo:        cfg.Repo,
		productSlug: slug,
		assetExt:    strings.ToLower(strings.TrimSpace(cfg.AssetExt)),
		cacheTTL:    ttl,
	}, nil
}

// List returns all published releases, newest first.
func (c *Catalog) List(ctx context.Context) ([]ReleaseDescriptor, error) {
	if cached, ok := c.readCache(ctx); ok {
		return cached, nil
	}

	raw, err := c.host.ListReleases(ctx)
	if err != nil {
		return nil, err
	}

	descriptors := c.mapReleases(raw)
	c.writeCache(ctx, descriptors)
	return descriptors, nil
}

// FindByVersion returns the release matching the normalized version, the
// newest release for "latest", or nil when nothing matches.
func (c *Catalog) FindByVersion(ctx context.Context, version string) (*ReleaseDescriptor, error) {
	descriptors, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, nil
	}

	if strings.EqualFold(strings.TrimSpace(version), VersionLatest) {
		newest := descriptors[0]
		return &newest, nil
	}

	normalized := NormalizeVersion(version)
	for _, descriptor := range descriptors {
		if descriptor.Version == normalized {
			found := descriptor
			return &found, nil
		}
	}
	return nil, nil
}

// NormalizeVersion strips a single leading "v". Already-normalized input
// comes back unchanged, so normalization is idempotent.
func NormalizeVersion(version string) string {
	trimmed := strings.TrimSpace(version)
	return strings.TrimPrefix(trimmed, "v")
}

// mapReleases drops drafts, prereleases, and releases without a primary
// distributable asset, then sorts newest first.
func (c *Catalog) mapReleases(raw []ghrelease.Release) []ReleaseDescriptor {
	descriptors := make([]ReleaseDescriptor, 0, len(raw))
	for _, release := range raw {
		if release.Draft || release.Prerelease {
			continue
		}
		asset, ok := c.primaryAsset(release.Assets)
		if !ok {
			continue
		}
		descriptors = append(descriptors, ReleaseDescriptor{
			Version:      NormalizeVersion(release.TagName),
			TagName:      release.TagName,
			Name:         release.Name,
			ReleaseNotes: release.Body,
			PublishedAt:  release.PublishedAt,
			AssetName:    asset.Name,
			AssetSize:    asset.Size,
			AssetURL:     asset.BrowserDownloadURL,
			AssetAPIURL:  asset.URL,
		})
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].PublishedAt.After(descriptors[j].PublishedAt)
	})
	return descriptors
}

// The primary distributable is the asset whose name carries the product
// slug and the expected archive extension.
func (c *Catalog) primaryAsset(assets []ghrelease.Asset) (ghrelease.Asset, bool) {
	for _, asset := range assets {
		name := strings.ToLower(asset.Name)
		if strings.Contains(name, c.productSlug) && strings.HasSuffix(name, c.assetExt) {
			return asset, true
		}
	}
	return ghrelease.Asset{}, false
}

func (c *Catalog) readCache(ctx context.Context) ([]ReleaseDescriptor, bool) {
	cached, err := c.cache.Get(ctx, c.keyer.CatalogKey(c.repo))
	if err != nil {
		if !redisclient.IsMiss(err) {
			c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "catalog cache read failed")
		}
		return nil, false
	}
	var descriptors []ReleaseDescriptor
	if err := json.Unmarshal([]byte(cached), &descriptors); err != nil {
		c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "catalog cache payload invalid")
		return nil, false
	}
	return descriptors, true
}

func (c *Catalog) writeCache(ctx context.Context, descriptors []ReleaseDescriptor) {
	payload, err := json.Marshal(descriptors)
	if err != nil {
		c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "catalog cache encode failed")
		return
	}
	if err := c.cache.Set(ctx, c.keyer.CatalogKey(c.repo), string(payload), c.cacheTTL); err != nil {
		// Serving uncached is fine; the next request retries the write.
		c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "catalog cache write failed")
	}
}
