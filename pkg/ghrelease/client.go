package ghrelease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

const (
	defaultBaseURL  = "https://api.github.com"
	defaultTimeout  = 30 * time.Second
	releasesPerPage = 100
	maxPages        = 10
)

var (
	errRepoRequired   = errors.New("release repository is required")
	errLoggerRequired = errors.New("release host logger is required")
)

// Release mirrors one entry from the release host's list endpoint.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []Asset   `json:"assets"`
}

// Asset is a downloadable artifact attached to a release. URL is the
// authenticated API endpoint; BrowserDownloadURL is the public one.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	URL                string `json:"url"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// AssetStream is an open download stream plus the response headers callers
// forward. Close the body when done.
type AssetStream struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
}

// Client reads published releases and streams their assets.
type Client struct {
	httpClient *http.Client
	// streamClient carries no overall timeout; asset downloads can run
	// longer than an API call and are bounded by the request context.
	streamClient *http.Client
	baseURL      string
	repo         string
	token        string
	logger       *logger.Logger
}

// NewClient initializes the release host wrapper for a fixed repository.
func NewClient(cfg config.ReleasesConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	repo := strings.Trim(strings.TrimSpace(cfg.Repo), "/")
	if repo == "" {
		return nil, errRepoRequired
	}

	return &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
		baseURL:      defaultBaseURL,
		repo:         repo,
		token:        strings.TrimSpace(cfg.GitHubToken),
		logger:       logg,
	}, nil
}

// ListReleases returns every release the host reports, drafts and
// prereleases included, following pagination until an empty page.
func (c *Client) ListReleases(ctx context.Context) ([]Release, error) {
	var releases []Release
	for page := 1; page <= maxPages; page++ {
		endpoint := fmt.Sprintf("%s/repos/%s/releases?per_page=%d&page=%d", c.baseURL, c.repo, releasesPerPage, page)
		batch, err := c.fetchPage(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		releases = append(releases, batch...)
		if len(batch) < releasesPerPage {
			break
		}
	}
	c.log(ctx, "response", "list_releases", map[string]any{"count": len(releases)})
	return releases, nil
}

func (c *Client) fetchPage(ctx context.Context, endpoint string) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building release host request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", "list_releases", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release host unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log(ctx, "error", "list_releases", map[string]any{"status": resp.StatusCode})
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("release host returned %d", resp.StatusCode))
	}

	var batch []Release
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding release list")
	}
	return batch, nil
}

// DownloadAsset opens a stream for the asset, preferring the authenticated
// API URL and falling back to the public browser URL. Both attempts failing
// is terminal for the request.
func (c *Client) DownloadAsset(ctx context.Context, apiURL, browserURL string) (*AssetStream, error) {
	attempts := []struct {
		url    string
		accept string
	}{
		{url: strings.TrimSpace(apiURL), accept: "application/octet-stream"},
		{url: strings.TrimSpace(browserURL), accept: ""},
	}

	var lastErr error
	for _, attempt := range attempts {
		if attempt.url == "" {
			continue
		}
		stream, err := c.openStream(ctx, attempt.url, attempt.accept)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		c.log(ctx, "error", "download_asset", map[string]any{
			"url":   attempt.url,
			"error": err.Error(),
		})
	}

	if lastErr == nil {
		lastErr = errors.New("no asset url available")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeAssetUnavailable, lastErr, "release asset could not be fetched")
}

func (c *Client) openStream(ctx context.Context, rawURL, accept string) (*AssetStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	c.authorize(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("asset endpoint returned %d", resp.StatusCode)
	}

	return &AssetStream{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"phase":     phase,
		"operation": op,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, "release host call failed")
	default:
		c.logger.Info(ctx, fmt.Sprintf("release host %s", phase))
	}
}
