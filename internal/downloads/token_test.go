package downloads

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := TokenPayload{
		CustomerID: uuid.New(),
		Version:    "1.2.0",
		ExpiresAt:  now.Add(time.Minute).UnixMilli(),
	}

	token, err := CreateToken(payload, "signing-secret")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	got, err := VerifyToken(token, "signing-secret", now)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if got.CustomerID != payload.CustomerID || got.Version != payload.Version {
		t.Fatalf("payload not preserved: %+v", got)
	}
	if got.ExpiresAt != payload.ExpiresAt {
		t.Fatalf("expiry not preserved: %d", got.ExpiresAt)
	}
}

func TestTokenEncodesExpiryAsEpochMillis(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := TokenPayload{CustomerID: uuid.New(), Version: "1.2.0", ExpiresAt: now.Add(time.Minute).UnixMilli()}

	token, err := CreateToken(payload, "signing-secret")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	body, _, _ := strings.Cut(token, ".")
	decoded, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		t.Fatalf("decode token body: %v", err)
	}
	var wire struct {
		ExpiresAt json.Number `json:"expires_at"`
	}
	if err := json.Unmarshal(decoded, &wire); err != nil {
		t.Fatalf("unmarshal token body: %v", err)
	}
	millis, err := wire.ExpiresAt.Int64()
	if err != nil {
		t.Fatalf("expiry is not an integer: %v", err)
	}
	if millis != payload.ExpiresAt {
		t.Fatalf("expected %d, got %d", payload.ExpiresAt, millis)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := TokenPayload{CustomerID: uuid.New(), Version: "1.2.0", ExpiresAt: now.Add(time.Minute).UnixMilli()}

	token, err := CreateToken(payload, "signing-secret")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	if _, err := VerifyToken(token, "signing-secret", now.Add(2*time.Minute)); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
	// At the expiry instant the token is still valid.
	if _, err := VerifyToken(token, "signing-secret", time.UnixMilli(payload.ExpiresAt)); err != nil {
		t.Fatalf("token must be valid at its expiry instant: %v", err)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	token, err := CreateToken(TokenPayload{
		CustomerID: uuid.New(),
		Version:    "1.2.0",
		ExpiresAt:  time.Now().Add(time.Minute).UnixMilli(),
	}, "signing-secret")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	if _, err := VerifyToken(token, "other-secret", time.Now()); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyTokenTamperResistance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := CreateToken(TokenPayload{
		CustomerID: uuid.New(),
		Version:    "1.2.0",
		ExpiresAt:  now.Add(time.Minute).UnixMilli(),
	}, "signing-secret")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	// Flipping any single byte must break verification.
	for i := 0; i < len(token); i++ {
		tampered := []byte(token)
		tampered[i] ^= 0x01
		if _, err := VerifyToken(string(tampered), "signing-secret", now); err == nil {
			t.Fatalf("tampered byte %d still verified", i)
		}
	}
}

func TestVerifyTokenRejectsMalformed(t *testing.T) {
	now := time.Now()
	for _, token := range []string{"", "no-dot", ".", "a.", ".b", "!!!.###"} {
		if _, err := VerifyToken(token, "signing-secret", now); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestCreateTokenRequiresSecret(t *testing.T) {
	if _, err := CreateToken(TokenPayload{}, ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := VerifyToken("a.b", "", time.Now()); err != ErrInvalidToken {
		t.Fatal("verification with empty secret must fail")
	}
}
