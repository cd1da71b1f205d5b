package controllers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wavecraftaudio/wavecraft-backend/api/middleware"
	"github.com/wavecraftaudio/wavecraft-backend/api/responses"
	"github.com/wavecraftaudio/wavecraft-backend/api/validators"
	"github.com/wavecraftaudio/wavecraft-backend/internal/downloads"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

type downloadTokenRequest struct {
	Version string `json:"version" validate:"required"`
}

// DownloadToken mints a short-lived signed URL for a release the caller is
// entitled to.
func DownloadToken(svc downloads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "download service unavailable"))
			return
		}

		var body downloadTokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer := middleware.CustomerFromContext(r.Context())
		grant, err := svc.RequestToken(r.Context(), customer, body.Version)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, grant)
	}
}

// DownloadFile redeems a download token and streams the release asset.
func DownloadFile(svc downloads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "download service unavailable"))
			return
		}

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "token is required"))
			return
		}

		customer := middleware.CustomerFromContext(r.Context())
		download, err := svc.StreamDownload(r.Context(), customer, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer download.Stream.Body.Close()

		contentType := download.Stream.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Release.AssetName))
		if download.Stream.ContentLength > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(download.Stream.ContentLength, 10))
		}

		if _, err := io.Copy(w, download.Stream.Body); err != nil && logg != nil {
			ctx := logg.WithField(r.Context(), "error", err.Error())
			logg.Warn(ctx, "download stream interrupted")
		}
	}
}
