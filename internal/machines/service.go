package machines

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/wavecraftaudio/wavecraft-backend/pkg/errors"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
	"github.com/wavecraftaudio/wavecraft-backend/pkg/logger"
)

type licenseAuthority interface {
	GetLicense(ctx context.Context, licenseID string) (*keygen.License, error)
	ListMachines(ctx context.Context, licenseID string) ([]keygen.Machine, error)
	CreateMachine(ctx context.Context, params keygen.MachineCreateParams) (*keygen.Machine, error)
	DeleteMachine(ctx context.Context, machineID string) (bool, error)
}

// ActivateInput describes one plugin installation binding itself to a
// license.
type ActivateInput struct {
	LicenseID   string
	Fingerprint string
	Name        string
	Platform    string
	Metadata    map[string]any
}

// Service enforces per-license seat limits through the license authority.
// No seat accounting is kept locally; the authority is the sole source of
// truth for activation counts.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*keygen.Machine, error)
	Deactivate(ctx context.Context, machineID string) (bool, error)
	Status(ctx context.Context, licenseID string) (*keygen.License, error)
}

type service struct {
	authority licenseAuthority
	logger    *logger.Logger
}

// NewService builds the machine activation manager.
func NewService(authority licenseAuthority, logg *logger.Logger) (Service, error) {
	if authority == nil {
		return nil, fmt.Errorf("license authority required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{authority: authority, logger: logg}, nil
}

// Activate registers a new machine against the license. An authority
// rejection (seat cap reached, license not activatable) surfaces as a
// state-conflict error; transport failures keep their dependency code so
// clients can tell "try again later" from "deactivate a seat first".
func (s *service) Activate(ctx context.Context, input ActivateInput) (*keygen.Machine, error) {
	licenseID := strings.TrimSpace(input.LicenseID)
	fingerprint := strings.TrimSpace(input.Fingerprint)
	if licenseID == "" || fingerprint == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id and fingerprint are required")
	}

	machine, err := s.authority.CreateMachine(ctx, keygen.MachineCreateParams{
		LicenseID:   licenseID,
		Fingerprint: fingerprint,
		Name:        input.Name,
		Platform:    input.Platform,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if machine == nil {
		logCtx := s.logger.WithField(ctx, "license_id", licenseID)
		s.logger.Info(logCtx, "machine activation rejected by authority")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "activation rejected: seat limit reached or license not activatable")
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"license_id": licenseID,
		"machine_id": machine.ID,
	})
	s.logger.Info(logCtx, "machine activated")
	return machine, nil
}

// Deactivate releases a seat. Deactivating an already-removed machine
// reports false rather than failing.
func (s *service) Deactivate(ctx context.Context, machineID string) (bool, error) {
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "machine id is required")
	}
	return s.authority.DeleteMachine(ctx, machineID)
}

// Status returns the license with its machines populated for seat-usage
// display.
func (s *service) Status(ctx context.Context, licenseID string) (*keygen.License, error) {
	licenseID = strings.TrimSpace(licenseID)
	if licenseID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	license, err := s.authority.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	machines, err := s.authority.ListMachines(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	license.Machines = machines
	return license, nil
}
