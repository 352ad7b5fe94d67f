package storefront

import (
	"github.com/google/uuid"
)

// ComputeRoot derives a deterministic UUID v5 from a domain and business key.
//
// The UUID is derived from: hash("gainlabz" + domain + business_key)
// using the OID namespace.
func ComputeRoot(domain, businessKey string) uuid.UUID {
	seed := "gainlabz" + domain + businessKey
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}

// SessionRoot computes a deterministic id for a user's session, so that a
// re-login of the same user addresses the same sync queue key.
func SessionRoot(userID string) uuid.UUID {
	return ComputeRoot("session", userID)
}

// NewOrderID returns a fresh random order id.
func NewOrderID() string {
	return uuid.NewString()
}
