package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wavecraftaudio/wavecraft-backend/api/controllers"
	"github.com/wavecraftaudio/wavecraft-backend/api/middleware"
	"github.com/wavecraftaudio/wavecraft-backend/internal/auth"
	"github.com/wavecraftaudio/wavecraft-backend/internal/customers"
	"github.com/wavecraftaudio/wavecraft-backend/internal/downloads"
	"github.com/wavecraftaudio/wavecraft-backend/internal/entitlements"
	"github.com/wavecraftaudio/wavecraft-backend/internal/machines"
	"github.com/wavecraftaudio/wavecraft-backend/internal/releases"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/auth/session"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/redis"
)

// Deps collects everything the router wires into handlers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	Sessions     session.AccessSessionChecker
	Customers    *customers.Repository
	AuthService  auth.Service
	Entitlements entitlements.Service
	Releases     releases.Service
	Downloads    downloads.Service
	Machines     machines.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(deps.AuthService, logg))
	})

	// The download token is its own credential; a session is optional here
	// but is still matched against the token's owner when present.
	r.With(middleware.AuthOptional(cfg.JWT, deps.Sessions, deps.Customers, logg)).
		Get("/api/v1/downloads/file", controllers.DownloadFile(deps.Downloads, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, deps.Customers, logg))

		r.Get("/licenses", controllers.LicenseList(deps.Entitlements, logg))
		r.Get("/releases", controllers.ReleaseList(deps.Releases, logg))

		r.Post("/downloads/token", controllers.DownloadToken(deps.Downloads, logg))

		r.Route("/machines", func(r chi.Router) {
			r.Post("/", controllers.MachineActivate(deps.Machines, logg))
			r.Delete("/{machineID}", controllers.MachineDeactivate(deps.Machines, logg))
			r.Get("/status", controllers.MachineStatus(deps.Machines, logg))
		})
	})

	return r
}
