package entitlements

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/square"
)

type stubOrderSource struct {
	orders     []square.Order
	err        error
	lastParams square.OrderSearchParams
}

func (s *stubOrderSource) SearchCompletedOrders(ctx context.Context, params square.OrderSearchParams) ([]square.Order, error) {
	s.lastParams = params
	return s.orders, s.err
}

type stubResolverAll struct {
	licenses []keygen.License
	lastRefs []LicenseReference
}

func (s *stubResolverAll) ResolveAll(ctx context.Context, refs []LicenseReference) []keygen.License {
	s.lastRefs = refs
	return s.licenses
}

func TestResolveEntitlementsNoCustomer(t *testing.T) {
	svc, err := NewService(&stubOrderSource{}, &stubResolverAll{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	resolution, err := svc.ResolveEntitlements(context.Background(), nil)
	if err != nil {
		t.Fatalf("resolve entitlements: %v", err)
	}
	if resolution.Authenticated {
		t.Fatal("expected authenticated=false without a customer")
	}
	if len(resolution.Licenses) != 0 {
		t.Fatalf("expected no licenses, got %+v", resolution.Licenses)
	}
}

func TestResolveEntitlementsNoLinkedCommerceProfile(t *testing.T) {
	orders := &stubOrderSource{orders: []square.Order{orderWithLicenses(`[{"license_id": "lic-1"}]`)}}
	svc, err := NewService(orders, &stubResolverAll{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	customer := &models.Customer{ID: uuid.New(), Email: "studio@example.com"}
	resolution, err := svc.ResolveEntitlements(context.Background(), customer)
	if err != nil {
		t.Fatalf("resolve entitlements: %v", err)
	}
	if !resolution.Authenticated {
		t.Fatal("signed-in customer must be authenticated")
	}
	if len(resolution.Licenses) != 0 {
		t.Fatalf("expected no licenses, got %+v", resolution.Licenses)
	}
	if orders.lastParams.CustomerID != "" {
		t.Fatal("order source must not be queried without a square customer id")
	}
}

func TestResolveEntitlementsFullFlow(t *testing.T) {
	orders := &stubOrderSource{orders: []square.Order{
		orderWithLicenses(`[{"license_id": "lic-1"}, {"license_key": "WAVE-2222"}]`),
	}}
	resolver := &stubResolverAll{licenses: []keygen.License{
		{ID: "lic-1", Status: "active"},
		{ID: "unresolved-abc", Key: "WAVE-2222", Status: "unknown"},
	}}
	svc, err := NewService(orders, resolver)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	customer := &models.Customer{
		ID:               uuid.New(),
		Email:            "studio@example.com",
		SquareCustomerID: "sq-cust-1",
	}
	resolution, err := svc.ResolveEntitlements(context.Background(), customer)
	if err != nil {
		t.Fatalf("resolve entitlements: %v", err)
	}
	if !resolution.Authenticated {
		t.Fatal("expected authenticated=true")
	}
	if len(resolution.Licenses) != 2 {
		t.Fatalf("expected 2 licenses, got %d", len(resolution.Licenses))
	}
	if orders.lastParams.CustomerID != "sq-cust-1" || orders.lastParams.Email != "studio@example.com" {
		t.Fatalf("unexpected order search params %+v", orders.lastParams)
	}
	wantRefs := []LicenseReference{{ID: "lic-1"}, {Key: "WAVE-2222"}}
	if !reflect.DeepEqual(resolver.lastRefs, wantRefs) {
		t.Fatalf("expected refs %+v, got %+v", wantRefs, resolver.lastRefs)
	}
}

func TestResolveEntitlementsOrderSourceFailure(t *testing.T) {
	orders := &stubOrderSource{err: errors.New("square down")}
	svc, err := NewService(orders, &stubResolverAll{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	customer := &models.Customer{ID: uuid.New(), SquareCustomerID: "sq-cust-1"}
	_, err = svc.ResolveEntitlements(context.Background(), customer)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeDependency, err)
	}
}
