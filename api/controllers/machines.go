package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wavecraftaudio/wavecraft-backend/api/responses"
	"github.com/wavecraftaudio/wavecraft-backend/api/validators"
	"github.com/wavecraftaudio/wavecraft-backend/internal/machines"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

type machineActivateRequest struct {
	LicenseID   string         `json:"license_id" validate:"required"`
	Fingerprint string         `json:"fingerprint" validate:"required"`
	Name        string         `json:"name"`
	Platform    string         `json:"platform"`
	Metadata    map[string]any `json:"metadata"`
}

// MachineActivate claims a seat on a license for a device fingerprint.
func MachineActivate(svc machines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "machine service unavailable"))
			return
		}

		var body machineActivateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		machine, err := svc.Activate(r.Context(), machines.ActivateInput{
			LicenseID:   strings.TrimSpace(body.LicenseID),
			Fingerprint: strings.TrimSpace(body.Fingerprint),
			Name:        strings.TrimSpace(body.Name),
			Platform:    strings.TrimSpace(body.Platform),
			Metadata:    body.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, machine)
	}
}

// MachineDeactivate releases a seat. Deactivating a machine that is already
// gone succeeds.
func MachineDeactivate(svc machines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "machine service unavailable"))
			return
		}

		machineID := strings.TrimSpace(chi.URLParam(r, "machineID"))
		if machineID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required"))
			return
		}

		removed, err := svc.Deactivate(r.Context(), machineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"deactivated": removed})
	}
}

// MachineStatus reports a license's seat usage.
func MachineStatus(svc machines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "machine service unavailable"))
			return
		}

		licenseID := strings.TrimSpace(r.URL.Query().Get("licenseId"))
		if licenseID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "licenseId is required"))
			return
		}

		license, err := svc.Status(r.Context(), licenseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toLicenseResponse(*license))
	}
}
