package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/internal/entitlements"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
)

type stubEntitlementService struct {
	resolution *entitlements.Resolution
	err        error
}

func (s *stubEntitlementService) ResolveEntitlements(_ context.Context, _ *models.Customer) (*entitlements.Resolution, error) {
	return s.resolution, s.err
}

func TestLicenseListSuccess(t *testing.T) {
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubEntitlementService{resolution: &entitlements.Resolution{
		Authenticated: true,
		Licenses: []keygen.License{
			{
				ID:          "lic-1",
				Key:         "WAVE-AAAA-BBBB",
				Status:      "active",
				Expiry:      &expiry,
				MaxMachines: 3,
				Machines: []keygen.Machine{
					{ID: "m-1", Fingerprint: "fp-1", Platform: "macos"},
				},
			},
		},
	}}

	req := authedRequest(http.MethodGet, "/api/v1/licenses", nil)
	resp := httptest.NewRecorder()

	LicenseList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data licenseListResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Licenses) != 1 {
		t.Fatalf("expected 1 license got %d", len(envelope.Data.Licenses))
	}
	if !envelope.Data.Authenticated {
		t.Fatal("expected authenticated true")
	}
	lic := envelope.Data.Licenses[0]
	if lic.ID != "lic-1" || lic.Status != "active" || lic.MaxMachines != 3 {
		t.Fatalf("unexpected license %+v", lic)
	}
	if len(lic.Machines) != 1 || lic.Machines[0].Fingerprint != "fp-1" {
		t.Fatalf("unexpected machines %+v", lic.Machines)
	}
}

func TestLicenseListEmpty(t *testing.T) {
	svc := &stubEntitlementService{resolution: &entitlements.Resolution{Authenticated: true}}

	req := authedRequest(http.MethodGet, "/api/v1/licenses", nil)
	resp := httptest.NewRecorder()

	LicenseList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data licenseListResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Licenses == nil || len(envelope.Data.Licenses) != 0 {
		t.Fatalf("expected empty array, got %+v", envelope.Data.Licenses)
	}
}
