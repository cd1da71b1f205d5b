package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/wavecraftaudio/wavecraft-backend/pkg/auth"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/auth/session"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
)

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(context.Context, string) (bool, error) {
	return s.ok, s.err
}

type stubCustomerLoader struct {
	customer *models.Customer
}

func (s stubCustomerLoader) FindByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	if s.customer != nil && s.customer.ID == id {
		return s.customer, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func testCfg() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, customerID uuid.UUID, jti string) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		CustomerID: customerID,
		Email:      "test@example.com",
		JTI:        jti,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testCfg(), stubSessionVerifier{ok: true}, stubCustomerLoader{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testCfg(), stubSessionVerifier{ok: true}, stubCustomerLoader{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testCfg()
	customer := &models.Customer{ID: uuid.New(), Email: "test@example.com"}
	token := mintTestToken(t, cfg, customer.ID, session.NewAccessID())

	var seen *models.Customer
	handler := Auth(cfg, stubSessionVerifier{ok: true}, stubCustomerLoader{customer: customer}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CustomerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if seen == nil || seen.ID != customer.ID {
		t.Fatalf("expected customer in context, got %+v", seen)
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	cfg := testCfg()
	customer := &models.Customer{ID: uuid.New()}
	token := mintTestToken(t, cfg, customer.ID, session.NewAccessID())

	handler := Auth(cfg, stubSessionVerifier{ok: false}, stubCustomerLoader{customer: customer}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsUnknownAccount(t *testing.T) {
	cfg := testCfg()
	customer := &models.Customer{ID: uuid.New()}
	token := mintTestToken(t, cfg, customer.ID, session.NewAccessID())
	handler := Auth(cfg, stubSessionVerifier{ok: true}, stubCustomerLoader{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown account, got %d", resp.Code)
	}
}
