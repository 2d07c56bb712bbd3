package limiter

import (
	"strings"

	"resumetailor-hq/tailor/pkg/auth"
	"resumetailor-hq/tailor/pkg/quota"
)

// UnknownAddress stands in for a missing source address.
const UnknownAddress = "unknown"

// DeriveIdentity maps a request to its quota principal. A verified subject
// makes the caller a user; otherwise the caller is a guest keyed by source
// address. Subjects in the guest namespace never become users.
func DeriveIdentity(sourceAddr string, claims *auth.Claims) quota.Identity {
	if claims != nil && claims.Subject != "" && !strings.HasPrefix(claims.Subject, quota.GuestPrefix) {
		return quota.Identity{ID: claims.Subject, Tier: quota.TierUser}
	}
	if sourceAddr == "" {
		sourceAddr = UnknownAddress
	}
	return quota.Identity{ID: quota.GuestPrefix + sourceAddr, Tier: quota.TierGuest}
}

// TierOf infers the tier from an identity string. Only used where the tier
// was not carried alongside the identity, such as operator lookups.
func TierOf(id string) quota.Tier {
	if strings.HasPrefix(id, quota.GuestPrefix) {
		return quota.TierGuest
	}
	return quota.TierUser
}

// MaskIdentity hides guest addresses for display.
func MaskIdentity(id quota.Identity) string {
	if id.Tier == quota.TierGuest {
		return quota.GuestPrefix + "***"
	}
	return id.ID
}
