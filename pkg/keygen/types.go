package keygen

import "time"

// License is the canonical entitlement record owned by the license
// authority. It is fetched per request and never persisted locally.
type License struct {
	ID          string         `json:"id"`
	Key         string         `json:"key"`
	Status      string         `json:"status"`
	Expiry      *time.Time     `json:"expiry,omitempty"`
	MaxMachines int            `json:"max_machines"`
	PolicyID    string         `json:"policy_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Machines    []Machine      `json:"machines"`
}

// Machine is one activation slot against a license.
type Machine struct {
	ID          string         `json:"id"`
	Fingerprint string         `json:"fingerprint"`
	Name        string         `json:"name,omitempty"`
	Platform    string         `json:"platform,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validation carries the authority's verdict on a raw key.
type Validation struct {
	Valid   bool
	Code    string
	Detail  string
	License *License
}

// MachineCreateParams describes a new activation.
type MachineCreateParams struct {
	LicenseID   string
	Fingerprint string
	Name        string
	Platform    string
	Metadata    map[string]any
}
