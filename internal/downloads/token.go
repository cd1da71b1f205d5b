package downloads

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure: bad shape, signature
// mismatch, expiry passed, customer mismatch. Callers must not distinguish
// the cases to the client.
var ErrInvalidToken = errors.New("invalid download token")

// TokenPayload authorizes one (customer, version) download for a short
// window. Expiry is epoch milliseconds.
type TokenPayload struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Version    string    `json:"version"`
	ExpiresAt  int64     `json:"expires_at"`
}

// CreateToken signs the payload with an HMAC over its canonical encoding.
// The result is "<base64url payload>.<base64url signature>".
func CreateToken(payload TokenPayload, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is required")
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(encoded)
	return body + "." + sign(body, secret), nil
}

// VerifyToken recomputes the signature and checks expiry. A nil error means
// the payload is authentic and unexpired; ownership against the current
// customer is the caller's check.
func VerifyToken(token, secret string, now time.Time) (*TokenPayload, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	body, providedSig, found := strings.Cut(token, ".")
	if !found || body == "" || providedSig == "" {
		return nil, ErrInvalidToken
	}

	expected := sign(body, secret)
	if !hmac.Equal([]byte(expected), []byte(providedSig)) {
		return nil, ErrInvalidToken
	}

	decoded, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var payload TokenPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, ErrInvalidToken
	}
	if now.UnixMilli() > payload.ExpiresAt {
		return nil, ErrInvalidToken
	}
	return &payload, nil
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
