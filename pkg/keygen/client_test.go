package keygen

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/config"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.KeygenConfig{
		BaseURL:   server.URL,
		AccountID: "acct-1",
		Token:     "authority-token",
		Timeout:   2 * time.Second,
	}, logger.New(logger.Options{Level: zerolog.ErrorLevel, Output: io.Discard}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestValidateKey(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/acct-1/licenses/actions/validate-key" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatal("validate-key must not send the bearer token")
		}
		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.Write([]byte(`{
			"meta": {"valid": true, "code": "VALID", "detail": "is valid"},
			"data": {
				"id": "lic-1",
				"type": "licenses",
				"attributes": {
					"key": "WAVE-AAAA",
					"status": "ACTIVE",
					"expiry": "2027-01-01T00:00:00Z",
					"maxMachines": 3,
					"created": "2025-01-01T00:00:00Z"
				},
				"relationships": {"policy": {"data": {"type": "policies", "id": "pol-1"}}}
			}
		}`))
	}))

	validation, err := client.ValidateKey(context.Background(), "WAVE-AAAA")
	if err != nil {
		t.Fatalf("validate key: %v", err)
	}
	if !validation.Valid || validation.Code != "VALID" {
		t.Fatalf("unexpected verdict %+v", validation)
	}
	lic := validation.License
	if lic == nil {
		t.Fatal("expected license payload")
	}
	if lic.ID != "lic-1" || lic.Status != "ACTIVE" || lic.MaxMachines != 3 || lic.PolicyID != "pol-1" {
		t.Fatalf("unexpected license %+v", lic)
	}
	if lic.Expiry == nil || !lic.Expiry.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %v", lic.Expiry)
	}
}

func TestValidateKeyBackfillsKey(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta": {"valid": false, "code": "EXPIRED"}, "data": {"id": "lic-2", "attributes": {"status": "EXPIRED"}}}`))
	}))

	validation, err := client.ValidateKey(context.Background(), "WAVE-BBBB")
	if err != nil {
		t.Fatalf("validate key: %v", err)
	}
	if validation.Valid {
		t.Fatal("expected invalid verdict")
	}
	if validation.License == nil || validation.License.Key != "WAVE-BBBB" {
		t.Fatalf("expected key backfill, got %+v", validation.License)
	}
}

func TestGetLicense(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/licenses/lic-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer authority-token" {
			t.Fatal("expected bearer token")
		}
		w.Write([]byte(`{"data": {"id": "lic-1", "attributes": {"key": "WAVE-AAAA", "status": "ACTIVE", "maxMachines": 2}}}`))
	}))

	lic, err := client.GetLicense(context.Background(), "lic-1")
	if err != nil {
		t.Fatalf("get license: %v", err)
	}
	if lic.ID != "lic-1" || lic.Key != "WAVE-AAAA" || lic.MaxMachines != 2 {
		t.Fatalf("unexpected license %+v", lic)
	}
}

func TestGetLicenseNotFound(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"title":"Not found"}]}`, http.StatusNotFound)
	}))

	_, err := client.GetLicense(context.Background(), "missing")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeNotFound, err)
	}
}

func TestListMachines(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/licenses/lic-1/machines" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data": [
			{"id": "mach-1", "attributes": {"fingerprint": "fp-1", "platform": "macos"}},
			{"id": "mach-2", "attributes": {"fingerprint": "fp-2", "platform": "windows"}}
		]}`))
	}))

	machines, err := client.ListMachines(context.Background(), "lic-1")
	if err != nil {
		t.Fatalf("list machines: %v", err)
	}
	if len(machines) != 2 {
		t.Fatalf("expected 2 machines, got %d", len(machines))
	}
	if machines[0].ID != "mach-1" || machines[0].Fingerprint != "fp-1" {
		t.Fatalf("unexpected machine %+v", machines[0])
	}
	if machines[1].Platform != "windows" {
		t.Fatalf("unexpected machine %+v", machines[1])
	}
}

func TestCreateMachine(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/acct-1/machines" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"id": "mach-9", "attributes": {"fingerprint": "fp-9"}}}`))
	}))

	machine, err := client.CreateMachine(context.Background(), MachineCreateParams{
		LicenseID:   "lic-1",
		Fingerprint: "fp-9",
		Platform:    "macos",
	})
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}
	if machine == nil || machine.ID != "mach-9" || machine.Fingerprint != "fp-9" {
		t.Fatalf("unexpected machine %+v", machine)
	}
}

func TestCreateMachineSeatCapRejected(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"title":"machine count has exceeded maximum"}]}`, http.StatusUnprocessableEntity)
	}))

	machine, err := client.CreateMachine(context.Background(), MachineCreateParams{
		LicenseID:   "lic-1",
		Fingerprint: "fp-9",
	})
	if err != nil {
		t.Fatalf("seat cap rejection must not be an error: %v", err)
	}
	if machine != nil {
		t.Fatalf("expected nil machine, got %+v", machine)
	}
}

func TestCreateMachineTransportFailure(t *testing.T) {
	client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.CreateMachine(context.Background(), MachineCreateParams{
		LicenseID:   "lic-1",
		Fingerprint: "fp-9",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeDependency, err)
	}
}

func TestDeleteMachine(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/accounts/acct-1/machines/mach-1" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	ok, err := client.DeleteMachine(context.Background(), "mach-1")
	if err != nil {
		t.Fatalf("delete machine: %v", err)
	}
	if !ok {
		t.Fatal("expected true for deleted machine")
	}
}

func TestDeleteMachineAlreadyGone(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "", http.StatusNotFound)
	}))

	ok, err := client.DeleteMachine(context.Background(), "mach-1")
	if err != nil {
		t.Fatalf("delete machine: %v", err)
	}
	if ok {
		t.Fatal("expected false for missing machine")
	}
}
