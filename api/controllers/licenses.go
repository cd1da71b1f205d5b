package controllers

import (
	"net/http"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/api/middleware"
	"github.com/wavecraftaudio/wavecraft-backend/api/responses"
	"github.com/wavecraftaudio/wavecraft-backend/internal/entitlements"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

type licenseResponse struct {
	ID          string            `json:"id"`
	Key         string            `json:"key,omitempty"`
	Status      string            `json:"status"`
	Expiry      *time.Time        `json:"expiry,omitempty"`
	MaxMachines int               `json:"max_machines"`
	Machines    []machineResponse `json:"machines"`
}

type machineResponse struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type licenseListResponse struct {
	Authenticated bool              `json:"authenticated"`
	Licenses      []licenseResponse `json:"licenses"`
}

func toLicenseResponse(lic keygen.License) licenseResponse {
	machines := make([]machineResponse, 0, len(lic.Machines))
	for _, m := range lic.Machines {
		machines = append(machines, machineResponse{
			ID:          m.ID,
			Fingerprint: m.Fingerprint,
			Name:        m.Name,
			Platform:    m.Platform,
			CreatedAt:   m.CreatedAt,
		})
	}
	return licenseResponse{
		ID:          lic.ID,
		Key:         lic.Key,
		Status:      lic.Status,
		Expiry:      lic.Expiry,
		MaxMachines: lic.MaxMachines,
		Machines:    machines,
	}
}

// LicenseList returns every license the caller's purchase history grants.
func LicenseList(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		customer := middleware.CustomerFromContext(r.Context())
		resolution, err := svc.ResolveEntitlements(r.Context(), customer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := licenseListResponse{
			Authenticated: resolution.Authenticated,
			Licenses:      make([]licenseResponse, 0, len(resolution.Licenses)),
		}
		for _, lic := range resolution.Licenses {
			out.Licenses = append(out.Licenses, toLicenseResponse(lic))
		}
		responses.WriteSuccess(w, out)
	}
}
