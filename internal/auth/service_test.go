package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	pkgAuth "github.com/wavecraftaudio/wavecraft-backend/pkg/auth"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/auth/session"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/security"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/square"
)

type stubCustomerRepo struct {
	byEmail map[string]*models.Customer
	byID    map[uuid.UUID]*models.Customer

	lastLoginID    uuid.UUID
	linkedSquareID string
	linkErr        error
}

func (s *stubCustomerRepo) FindByEmail(_ context.Context, email string) (*models.Customer, error) {
	if c, ok := s.byEmail[email]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCustomerRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.lastLoginID = id
	return nil
}

func (s *stubCustomerRepo) UpdateSquareCustomerID(_ context.Context, _ uuid.UUID, squareCustomerID string) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	s.linkedSquareID = squareCustomerID
	return nil
}

type stubSessions struct {
	generated   string
	revoked     []string
	rotateErr   error
	newAccessID string
	newRefresh  string
}

func (s *stubSessions) Generate(_ context.Context, accessID string) (string, error) {
	s.generated = accessID
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(_ context.Context, _, _ string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	return s.newAccessID, s.newRefresh, nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

type stubDirectory struct {
	profile  *square.CustomerProfile
	err      error
	searched string
}

func (s *stubDirectory) SearchCustomer(_ context.Context, params square.CustomerSearchParams) (*square.CustomerProfile, error) {
	s.searched = params.Email
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret-test-secret-test-secret!",
		Issuer:            "wavecraft-test",
		ExpirationMinutes: 15,
	}
}

func quietLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{Level: zerolog.ErrorLevel, Output: io.Discard})
}

func seedCustomer(t *testing.T, password string) *models.Customer {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.Customer{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		PasswordHash: hash,
		DisplayName:  "Ada",
	}
}

func newTestService(t *testing.T, repo *stubCustomerRepo, sessions *stubSessions, dir commerceDirectory) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		CustomerRepo:   repo,
		SessionManager: sessions,
		Commerce:       dir,
		Logger:         quietLogger(t),
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestLoginSuccess(t *testing.T) {
	customer := seedCustomer(t, "correct horse battery")
	customer.SquareCustomerID = "SQ-LINKED"
	repo := &stubCustomerRepo{byEmail: map[string]*models.Customer{customer.Email: customer}}
	sessions := &stubSessions{}
	svc := newTestService(t, repo, sessions, nil)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "Ada@Example.com", Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if resp.Customer == nil || resp.Customer.Email != customer.Email {
		t.Fatalf("unexpected customer payload: %+v", resp.Customer)
	}
	if repo.lastLoginID != customer.ID {
		t.Fatal("expected last login to be recorded")
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.CustomerID != customer.ID {
		t.Fatalf("claims customer = %s, want %s", claims.CustomerID, customer.ID)
	}
	if claims.ID != sessions.generated {
		t.Fatalf("jti %q should match generated session access id %q", claims.ID, sessions.generated)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	customer := seedCustomer(t, "correct horse battery")
	repo := &stubCustomerRepo{byEmail: map[string]*models.Customer{customer.Email: customer}}
	svc := newTestService(t, repo, &stubSessions{}, nil)

	_, err := svc.Login(context.Background(), LoginRequest{Email: customer.Email, Password: "wrong"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if typed.Message() != invalidCredentialsMessage {
		t.Fatalf("error message leaks detail: %q", typed.Message())
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(t, &stubCustomerRepo{byEmail: map[string]*models.Customer{}}, &stubSessions{}, nil)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "anything"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if typed.Message() != invalidCredentialsMessage {
		t.Fatalf("unknown email must read the same as bad password, got %q", typed.Message())
	}
}

func TestLoginLinksCommerceProfile(t *testing.T) {
	customer := seedCustomer(t, "correct horse battery")
	repo := &stubCustomerRepo{byEmail: map[string]*models.Customer{customer.Email: customer}}
	dir := &stubDirectory{profile: &square.CustomerProfile{ID: "SQ-123", Email: customer.Email}}
	svc := newTestService(t, repo, &stubSessions{}, dir)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: customer.Email, Password: "correct horse battery"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if dir.searched != customer.Email {
		t.Fatalf("searched email = %q", dir.searched)
	}
	if repo.linkedSquareID != "SQ-123" {
		t.Fatalf("linked square id = %q", repo.linkedSquareID)
	}
	if customer.SquareCustomerID != "SQ-123" {
		t.Fatal("customer model should carry the linked id")
	}
}

func TestLoginSurvivesCommerceOutage(t *testing.T) {
	customer := seedCustomer(t, "correct horse battery")
	repo := &stubCustomerRepo{byEmail: map[string]*models.Customer{customer.Email: customer}}
	dir := &stubDirectory{err: errors.New("square is down")}
	svc := newTestService(t, repo, &stubSessions{}, dir)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: customer.Email, Password: "correct horse battery"}); err != nil {
		t.Fatalf("login must not fail on commerce lookup: %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	customer := seedCustomer(t, "unused")
	repo := &stubCustomerRepo{byID: map[uuid.UUID]*models.Customer{customer.ID: customer}}
	sessions := &stubSessions{newAccessID: session.NewAccessID(), newRefresh: "fresh-refresh"}
	svc := newTestService(t, repo, sessions, nil)

	oldJTI := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{
		CustomerID: customer.ID,
		Email:      customer.Email,
		JTI:        oldJTI,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), RefreshRequest{AccessToken: accessToken, RefreshToken: "old-refresh"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if resp.RefreshToken != "fresh-refresh" {
		t.Fatalf("refresh token = %q", resp.RefreshToken)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.ID != sessions.newAccessID {
		t.Fatalf("rotated jti = %q, want %q", claims.ID, sessions.newAccessID)
	}
}

func TestRefreshRejectsBadRefreshToken(t *testing.T) {
	customer := seedCustomer(t, "unused")
	repo := &stubCustomerRepo{byID: map[uuid.UUID]*models.Customer{customer.ID: customer}}
	sessions := &stubSessions{rotateErr: session.ErrInvalidRefreshToken}
	svc := newTestService(t, repo, sessions, nil)

	accessToken, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now(), pkgAuth.AccessTokenPayload{
		CustomerID: customer.ID,
		Email:      customer.Email,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: accessToken, RefreshToken: "stolen"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	svc := newTestService(t, &stubCustomerRepo{}, &stubSessions{}, nil)

	_, err := svc.Refresh(context.Background(), RefreshRequest{AccessToken: "not-a-jwt", RefreshToken: "x"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	customer := seedCustomer(t, "unused")
	sessions := &stubSessions{}
	svc := newTestService(t, &stubCustomerRepo{}, sessions, nil)

	jti := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now(), pkgAuth.AccessTokenPayload{
		CustomerID: customer.ID,
		Email:      customer.Email,
		JTI:        jti,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := svc.Logout(context.Background(), LogoutRequest{AccessToken: accessToken}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != jti {
		t.Fatalf("revoked = %v, want [%s]", sessions.revoked, jti)
	}
}
