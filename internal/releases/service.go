package releases

import (
	"context"
	"fmt"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/internal/entitlements"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/db/models"
)

type releaseCatalog interface {
	List(ctx context.Context) ([]ReleaseDescriptor, error)
	FindByVersion(ctx context.Context, version string) (*ReleaseDescriptor, error)
}

type entitlementSource interface {
	ResolveEntitlements(ctx context.Context, customer *models.Customer) (*entitlements.Resolution, error)
}

// ReleaseWithAccess pairs a release with the customer's download verdict.
type ReleaseWithAccess struct {
	ReleaseDescriptor
	Allowed bool `json:"allowed"`
}

// Service exposes the release catalog with per-customer access flags.
type Service interface {
	ListForCustomer(ctx context.Context, customer *models.Customer) ([]ReleaseWithAccess, error)
	FindByVersion(ctx context.Context, version string) (*ReleaseDescriptor, error)
}

type service struct {
	catalog      releaseCatalog
	entitlements entitlementSource
	now          func() time.Time
}

// NewService builds the release listing service.
func NewService(catalog releaseCatalog, entitlementSvc entitlementSource) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("release catalog required")
	}
	if entitlementSvc == nil {
		return nil, fmt.Errorf("entitlement service required")
	}
	return &service{
		catalog:      catalog,
		entitlements: entitlementSvc,
		now:          time.Now,
	}, nil
}

// ListForCustomer returns every published release flagged with whether the
// customer may download it. Browsing never hides releases; the flag only
// drives the UI, enforcement happens at token mint and download time.
func (s *service) ListForCustomer(ctx context.Context, customer *models.Customer) ([]ReleaseWithAccess, error) {
	descriptors, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	resolution, err := s.entitlements.ResolveEntitlements(ctx, customer)
	if err != nil {
		return nil, err
	}

	now := s.now()
	flagged := make([]ReleaseWithAccess, 0, len(descriptors))
	for _, descriptor := range descriptors {
		flagged = append(flagged, ReleaseWithAccess{
			ReleaseDescriptor: descriptor,
			Allowed:           entitlements.ReleaseAllowed(descriptor.PublishedAt, resolution.Licenses, now),
		})
	}
	return flagged, nil
}

func (s *service) FindByVersion(ctx context.Context, version string) (*ReleaseDescriptor, error) {
	return s.catalog.FindByVersion(ctx, version)
}
