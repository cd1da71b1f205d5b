package keygen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 2048
)

var (
	errAccountIDRequired = errors.New("keygen account id is required")
	errLoggerRequired    = errors.New("keygen logger is required")
)

// Client talks to the license authority's JSON-API. Key validation is
// unauthenticated; everything else sends the bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	token      string
	logger     *logger.Logger
}

// NewClient initializes the license authority wrapper.
func NewClient(cfg config.KeygenConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	accountID := strings.TrimSpace(cfg.AccountID)
	if accountID == "" {
		return nil, errAccountIDRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		accountID:  accountID,
		token:      strings.TrimSpace(cfg.Token),
		logger:     logg,
	}, nil
}

// ValidateKey asks the authority to validate a raw license key. The verdict
// and license payload come back together; an invalid key still carries its
// license data when the authority knows the key.
func (c *Client) ValidateKey(ctx context.Context, key string) (*Validation, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license key is required")
	}

	body := validateKeyRequest{}
	body.Meta.Key = key

	var resp validateKeyResponse
	if err := c.do(ctx, http.MethodPost, c.accountPath("licenses/actions/validate-key"), body, &resp, false); err != nil {
		return nil, err
	}

	validation := &Validation{
		Valid:   resp.Meta.Valid,
		Code:    resp.Meta.Code,
		Detail:  resp.Meta.Detail,
		License: resp.Data.toLicense(),
	}
	if validation.License != nil && validation.License.Key == "" {
		validation.License.Key = key
	}
	return validation, nil
}

// GetLicense fetches the canonical license record by id. Machines are not
// populated; call ListMachines separately.
func (c *Client) GetLicense(ctx context.Context, licenseID string) (*License, error) {
	licenseID = strings.TrimSpace(licenseID)
	if licenseID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	var resp licenseResponse
	if err := c.do(ctx, http.MethodGet, c.accountPath("licenses/"+url.PathEscape(licenseID)), nil, &resp, true); err != nil {
		return nil, err
	}
	lic := resp.Data.toLicense()
	if lic == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "license authority returned an empty document")
	}
	return lic, nil
}

// ListMachines returns the license's current activations in authority order.
func (c *Client) ListMachines(ctx context.Context, licenseID string) ([]Machine, error) {
	licenseID = strings.TrimSpace(licenseID)
	if licenseID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	var resp machinesListResponse
	if err := c.do(ctx, http.MethodGet, c.accountPath("licenses/"+url.PathEscape(licenseID)+"/machines"), nil, &resp, true); err != nil {
		return nil, err
	}
	machines := make([]Machine, 0, len(resp.Data))
	for _, doc := range resp.Data {
		machines = append(machines, doc.toMachine())
	}
	return machines, nil
}

// CreateMachine registers a new activation. A nil machine with nil error
// means the authority rejected the activation (seat cap reached or license
// not activatable); transport and auth failures return an error.
func (c *Client) CreateMachine(ctx context.Context, params MachineCreateParams) (*Machine, error) {
	licenseID := strings.TrimSpace(params.LicenseID)
	fingerprint := strings.TrimSpace(params.Fingerprint)
	if licenseID == "" || fingerprint == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id and fingerprint are required")
	}

	req := createMachineRequest{}
	req.Data.Type = "machines"
	req.Data.Attributes = machineAttributes{
		Fingerprint: fingerprint,
		Name:        params.Name,
		Platform:    params.Platform,
		Metadata:    params.Metadata,
	}
	req.Data.Relationships.License.Data = relationshipData{Type: "licenses", ID: licenseID}

	var resp machineResponse
	err := c.do(ctx, http.MethodPost, c.accountPath("machines"), req, &resp, true)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			return nil, nil
		}
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}
	machine := resp.Data.toMachine()
	return &machine, nil
}

// DeleteMachine removes an activation. Returns false without error when the
// machine is already gone.
func (c *Client) DeleteMachine(ctx context.Context, machineID string) (bool, error) {
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required")
	}

	err := c.do(ctx, http.MethodDelete, c.accountPath("machines/"+url.PathEscape(machineID)), nil, nil, true)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) accountPath(suffix string) string {
	return fmt.Sprintf("%s/accounts/%s/%s", c.baseURL, url.PathEscape(c.accountID), suffix)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding license authority request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building license authority request")
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}
	if authenticated && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log(ctx, "request", method, endpoint, nil)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", method, endpoint, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "license authority unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.log(ctx, "error", method, endpoint, map[string]any{
			"status": resp.StatusCode,
			"body":   string(raw),
		})
		return pkgerrors.New(
			domainCodeForStatus(resp.StatusCode),
			fmt.Sprintf("license authority returned %d", resp.StatusCode),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log(ctx, "error", method, endpoint, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding license authority response")
	}
	c.log(ctx, "response", method, endpoint, map[string]any{"status": resp.StatusCode})
	return nil
}

func (c *Client) log(ctx context.Context, phase, method, endpoint string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"phase":    phase,
		"method":   method,
		"endpoint": endpoint,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, "license authority call failed")
	default:
		c.logger.Info(ctx, fmt.Sprintf("license authority %s", phase))
	}
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
