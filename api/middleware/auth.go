package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecraftaudio/wavecraft-backend/api/responses"
	pkgAuth "github.com/wavecraftaudio/wavecraft-backend/pkg/auth"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/auth/session"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

type customerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// Auth validates a bearer token, checks the session is still live, and seeds
// the request context with the authenticated customer.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, customers customerLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked"))
					return
				}
			}

			customer, err := customers.FindByID(r.Context(), claims.CustomerID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown account"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer"))
				return
			}

			ctx := WithCustomer(r.Context(), customer)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, customer.ID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

// AuthOptional seeds the context with the customer when a valid bearer token
// is presented but lets anonymous requests through. Endpoints that carry
// their own credential (signed download tokens) use this so a stale session
// can still be checked against the token's owner.
func AuthOptional(cfg config.JWTConfig, verifier session.AccessSessionChecker, customers customerLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil || claims.ID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if verifier != nil {
				if ok, err := verifier.HasSession(r.Context(), claims.ID); err != nil || !ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			customer, err := customers.FindByID(r.Context(), claims.CustomerID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithCustomer(r.Context(), customer)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, customer.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
