package entitlements

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/metrics"
)

const placeholderStatus = "unknown"

type licenseAuthority interface {
	ValidateKey(ctx context.Context, key string) (*keygen.Validation, error)
	GetLicense(ctx context.Context, licenseID string) (*keygen.License, error)
	ListMachines(ctx context.Context, licenseID string) ([]keygen.Machine, error)
}

// Resolver turns license references into canonical license records,
// degrading through fallbacks when the authority is unreachable.
type Resolver struct {
	authority licenseAuthority
	logger    *logger.Logger
	metrics   *metrics.ResolverMetrics
}

// NewResolver builds a resolver against the license authority.
func NewResolver(authority licenseAuthority, logg *logger.Logger, resolverMetrics *metrics.ResolverMetrics) (*Resolver, error) {
	if authority == nil {
		return nil, fmt.Errorf("license authority required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Resolver{authority: authority, logger: logg, metrics: resolverMetrics}, nil
}

// Resolve obtains a license record for one reference. The chain is: fetch
// by id, then validate by key, then a synthesized placeholder. Authority
// failures fall through to the next step, so the returned license is never
// nil; the error reports any degradation that happened along the way.
func (r *Resolver) Resolve(ctx context.Context, ref LicenseReference) (*keygen.License, error) {
	var degraded error

	if ref.ID != "" {
		lic, err := r.resolveByID(ctx, ref.ID)
		if err == nil {
			return lic, nil
		}
		degraded = multierr.Append(degraded, fmt.Errorf("get license %s: %w", ref.ID, err))
	}
	if ref.Key != "" {
		if degraded != nil {
			r.metrics.IncFallback("key_validation")
		}
		lic, err := r.resolveByKey(ctx, ref.Key)
		if err != nil {
			degraded = multierr.Append(degraded, fmt.Errorf("validate key %s: %w", redactKey(ref.Key), err))
		} else if lic != nil {
			return lic, degraded
		}
	}
	r.metrics.IncFallback("placeholder")
	return placeholderLicense(ref), degraded
}

// ResolveAll fans out over the references concurrently and returns the
// resolved records in input order. Individual lookup failures degrade to
// fallbacks or placeholders; the aggregate call never fails, it only logs
// what degraded.
func (r *Resolver) ResolveAll(ctx context.Context, refs []LicenseReference) []keygen.License {
	if len(refs) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		degraded error
	)
	resolved := make([]keygen.License, len(refs))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		group.Go(func() error {
			lic, err := r.Resolve(groupCtx, ref)
			resolved[i] = *lic
			if err != nil {
				mu.Lock()
				degraded = multierr.Append(degraded, err)
				mu.Unlock()
			}
			return nil
		})
	}
	// Goroutines never return errors; Wait only synchronizes.
	_ = group.Wait()

	if degraded != nil {
		logCtx := r.logger.WithField(ctx, "degraded_lookups", len(multierr.Errors(degraded)))
		r.logger.Warn(logCtx, "license resolution degraded: "+degraded.Error())
	}
	return resolved
}

func (r *Resolver) resolveByID(ctx context.Context, licenseID string) (*keygen.License, error) {
	lic, err := r.authority.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	machines, err := r.authority.ListMachines(ctx, licenseID)
	if err == nil {
		// Seat data is supplementary; a failed machines fetch keeps the
		// license without it rather than degrading the whole lookup.
		lic.Machines = machines
	}

	lic.Status = strings.ToLower(lic.Status)
	return lic, nil
}

func (r *Resolver) resolveByKey(ctx context.Context, key string) (*keygen.License, error) {
	validation, err := r.authority.ValidateKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if validation == nil || validation.License == nil {
		return nil, nil
	}

	lic := validation.License
	// The validate-by-key action does not return machine data.
	lic.Machines = nil
	lic.Status = strings.ToLower(lic.Status)
	return lic, nil
}

// placeholderLicense still surfaces the key to the customer when the
// authority is unreachable. The id is derived from the reference so
// repeated resolution of the same reference is idempotent.
func placeholderLicense(ref LicenseReference) *keygen.License {
	seed := ref.Key
	if seed == "" {
		seed = ref.ID
	}
	sum := sha256.Sum256([]byte(seed))
	return &keygen.License{
		ID:     "unresolved-" + hex.EncodeToString(sum[:8]),
		Key:    ref.Key,
		Status: placeholderStatus,
	}
}

func redactKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
