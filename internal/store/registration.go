package store

import (
	"fmt"
	"time"

	"github.com/ayusman/hasta/internal/palmprint"
)

// Registration is the persisted record binding a palm template to an
// identity. One registration exists per identity at most; identity is the
// store's primary key.
type Registration struct {
	Identity            string                   `json:"identity"`
	Signature           string                   `json:"signature"`
	NormalizedDistances palmprint.DistanceVector `json:"normalizedDistances"`
	RawDistances        palmprint.DistanceVector `json:"rawDistances"`
	RegisteredAt        time.Time                `json:"registeredAt"`
	LastUsed            time.Time                `json:"lastUsed"`
}

// Validate checks the structural invariants of a decoded record. A record
// that fails validation is treated as corrupt by the store.
func (r *Registration) Validate() error {
	if r.Identity == "" {
		return fmt.Errorf("registration missing identity")
	}
	if len(r.Signature) != 16 || !isLowerHex(r.Signature) {
		return fmt.Errorf("registration %q: signature %q is not 16 hex characters", r.Identity, r.Signature)
	}
	if len(r.NormalizedDistances) == 0 {
		return fmt.Errorf("registration %q: no normalized distances", r.Identity)
	}
	if len(r.RawDistances) == 0 {
		return fmt.Errorf("registration %q: no raw distances", r.Identity)
	}
	if r.RegisteredAt.IsZero() {
		return fmt.Errorf("registration %q: missing registeredAt", r.Identity)
	}
	if r.LastUsed.IsZero() {
		return fmt.Errorf("registration %q: missing lastUsed", r.Identity)
	}
	return nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Summary is the listing projection of a registration.
type Summary struct {
	Identity     string    `json:"identity"`
	RegisteredAt time.Time `json:"registeredAt"`
	LastUsed     time.Time `json:"lastUsed"`
}
