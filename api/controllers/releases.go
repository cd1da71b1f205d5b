package controllers

import (
	"net/http"

	"github.com/wavecraftaudio/wavecraft-backend/api/middleware"
	"github.com/wavecraftaudio/wavecraft-backend/api/responses"
	"github.com/wavecraftaudio/wavecraft-backend/internal/releases"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

type releaseListResponse struct {
	Releases []releases.ReleaseWithAccess `json:"releases"`
}

// ReleaseList returns the published release catalog with a per-release
// access flag for the caller.
func ReleaseList(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "release service unavailable"))
			return
		}

		customer := middleware.CustomerFromContext(r.Context())
		list, err := svc.ListForCustomer(r.Context(), customer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, releaseListResponse{Releases: list})
	}
}
