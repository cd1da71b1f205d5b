package entitlements

import (
	"encoding/json"
	"strings"

	"github.com/wavecraftaudio/wavecraft-backend/pkg/square"
)

// LicenseReference points at a license by authority id, raw key, or both.
// References are recomputed from order metadata on every request.
type LicenseReference struct {
	ID  string
	Key string
}

const licensesMetadataKey = "licenses"

// Order metadata has changed shape over the years; each rule names one
// historical spelling of the license id field. First match wins, so new
// legacy variants are a one-line addition.
var idAccessorRules = []string{"license_id", "licenseId", "id"}

const keyAccessorRule = "license_key"

// ExtractLicenseReferences walks the customer's orders and normalizes every
// license entry found in order metadata. Output preserves insertion order
// across orders; entries carrying neither id nor key are dropped, and
// duplicate ids collapse to the first occurrence.
func ExtractLicenseReferences(orders []square.Order) []LicenseReference {
	var (
		refs     []LicenseReference
		seenIDs  = make(map[string]struct{})
		seenKeys = make(map[string]struct{})
	)

	for _, order := range orders {
		for _, entry := range licenseEntries(order.Metadata) {
			ref := normalizeEntry(entry)
			if ref.ID == "" && ref.Key == "" {
				continue
			}
			if ref.ID != "" {
				if _, dup := seenIDs[ref.ID]; dup {
					continue
				}
				seenIDs[ref.ID] = struct{}{}
			} else {
				if _, dup := seenKeys[ref.Key]; dup {
					continue
				}
				seenKeys[ref.Key] = struct{}{}
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

// licenseEntries parses the raw "licenses" metadata value. Malformed or
// missing payloads yield nothing; historical data is full of both.
func licenseEntries(metadata map[string]string) []map[string]any {
	raw, ok := metadata[licensesMetadataKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	return entries
}

func normalizeEntry(entry map[string]any) LicenseReference {
	ref := LicenseReference{}
	for _, rule := range idAccessorRules {
		if value := stringField(entry, rule); value != "" {
			ref.ID = value
			break
		}
	}
	ref.Key = stringField(entry, keyAccessorRule)
	return ref
}

func stringField(entry map[string]any, field string) string {
	raw, ok := entry[field]
	if !ok {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
