package keygen

import "time"

// JSON-API document shapes used by the license authority.

type licenseDocument struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes licenseAttributes `json:"attributes"`
	Relationships struct {
		Policy struct {
			Data *relationshipData `json:"data"`
		} `json:"policy"`
	} `json:"relationships"`
}

type licenseAttributes struct {
	Key         string         `json:"key"`
	Status      string         `json:"status"`
	Expiry      *time.Time     `json:"expiry"`
	MaxMachines int            `json:"maxMachines"`
	Metadata    map[string]any `json:"metadata"`
	Created     time.Time      `json:"created"`
}

type relationshipData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type licenseResponse struct {
	Data *licenseDocument `json:"data"`
}

type machineDocument struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes machineAttributes `json:"attributes"`
}

type machineAttributes struct {
	Fingerprint string         `json:"fingerprint"`
	Name        string         `json:"name"`
	Platform    string         `json:"platform"`
	Metadata    map[string]any `json:"metadata"`
	Created     time.Time      `json:"created"`
}

type machineResponse struct {
	Data *machineDocument `json:"data"`
}

type machinesListResponse struct {
	Data []machineDocument `json:"data"`
}

type validateKeyRequest struct {
	Meta struct {
		Key string `json:"key"`
	} `json:"meta"`
}

type validateKeyResponse struct {
	Meta struct {
		Valid  bool   `json:"valid"`
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"meta"`
	Data *licenseDocument `json:"data"`
}

type createMachineRequest struct {
	Data struct {
		Type       string            `json:"type"`
		Attributes machineAttributes `json:"attributes"`
		Relationships struct {
			License struct {
				Data relationshipData `json:"data"`
			} `json:"license"`
		} `json:"relationships"`
	} `json:"data"`
}

func (doc *licenseDocument) toLicense() *License {
	if doc == nil {
		return nil
	}
	lic := &License{
		ID:          doc.ID,
		Key:         doc.Attributes.Key,
		Status:      doc.Attributes.Status,
		Expiry:      doc.Attributes.Expiry,
		MaxMachines: doc.Attributes.MaxMachines,
		Metadata:    doc.Attributes.Metadata,
		CreatedAt:   doc.Attributes.Created,
	}
	if policy := doc.Relationships.Policy.Data; policy != nil {
		lic.PolicyID = policy.ID
	}
	return lic
}

func (doc machineDocument) toMachine() Machine {
	return Machine{
		ID:          doc.ID,
		Fingerprint: doc.Attributes.Fingerprint,
		Name:        doc.Attributes.Name,
		Platform:    doc.Attributes.Platform,
		Metadata:    doc.Attributes.Metadata,
		CreatedAt:   doc.Attributes.Created,
	}
}
