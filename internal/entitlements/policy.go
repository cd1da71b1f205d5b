package entitlements

import (
	"strings"
	"time"

	"github.com/wavecraftaudio/wavecraft-backend/pkg/keygen"
)

const statusActive = "active"

// ReleaseAllowed decides whether a customer holding the given licenses may
// download a release published at publishedAt.
//
// Any currently active license grants access to every release, past or
// future. Otherwise a lapsed customer keeps whatever shipped before their
// latest expiry: allowed iff publishedAt is not after the maximum expiry
// across all licenses that carry one. No active license and no expiry
// means deny.
func ReleaseAllowed(publishedAt time.Time, licenses []keygen.License, now time.Time) bool {
	for _, lic := range licenses {
		if licenseActive(lic, now) {
			return true
		}
	}

	var maxExpiry *time.Time
	for _, lic := range licenses {
		if lic.Expiry == nil {
			continue
		}
		if maxExpiry == nil || lic.Expiry.After(*maxExpiry) {
			maxExpiry = lic.Expiry
		}
	}
	if maxExpiry == nil {
		return false
	}
	return !publishedAt.After(*maxExpiry)
}

func licenseActive(lic keygen.License, now time.Time) bool {
	if !strings.EqualFold(lic.Status, statusActive) {
		return false
	}
	return lic.Expiry == nil || !lic.Expiry.Before(now)
}
