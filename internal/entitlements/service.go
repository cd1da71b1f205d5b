package entitlements

import (
	"context"
	"fmt"

	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/square"
)

type orderSource interface {
	SearchCompletedOrders(ctx context.Context, params square.OrderSearchParams) ([]square.Order, error)
}

type licenseResolver interface {
	ResolveAll(ctx context.Context, refs []LicenseReference) []keygen.License
}

// Resolution is the outcome of resolving a customer's entitlements.
// Authenticated is false only when there is no signed-in customer at all;
// failed individual lookups still count as authenticated.
type Resolution struct {
	Authenticated bool
	Licenses      []keygen.License
}

// Service reconciles purchase history with the license authority.
type Service interface {
	ResolveEntitlements(ctx context.Context, customer *models.Customer) (*Resolution, error)
}

type service struct {
	orders   orderSource
	resolver licenseResolver
}

// NewService builds the entitlement resolution service.
func NewService(orders orderSource, resolver licenseResolver) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("license resolver required")
	}
	return &service{orders: orders, resolver: resolver}, nil
}

// ResolveEntitlements loads the customer's completed orders, extracts every
// license reference from their metadata, and resolves each against the
// authority concurrently.
func (s *service) ResolveEntitlements(ctx context.Context, customer *models.Customer) (*Resolution, error) {
	if customer == nil {
		return &Resolution{Authenticated: false}, nil
	}

	resolution := &Resolution{Authenticated: true}
	if customer.SquareCustomerID == "" {
		// No linked commerce profile means no purchase history yet.
		return resolution, nil
	}

	orders, err := s.orders.SearchCompletedOrders(ctx, square.OrderSearchParams{
		CustomerID: customer.SquareCustomerID,
		Email:      customer.Email,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading purchase history")
	}

	refs := ExtractLicenseReferences(orders)
	resolution.Licenses = s.resolver.ResolveAll(ctx, refs)
	return resolution, nil
}
