/*
reference.go - Human-shareable booking references

PURPOSE:
  Generates reference numbers guests quote over the phone. Uniqueness
  within a tenant is the invariant (enforced by a unique index in the
  store); the format is cosmetic. The alphabet has no 0, 1, I, or O, so a
  reference read back over the phone is unambiguous.

FORMAT:
  RSV-XXXXXXXX for bookings, GRP-XXXXXXXX for groups.

SEE ALSO:
  - store/sqlite/reservation.go: retries on the rare collision
*/
package booking

import (
	"encoding/base32"

	"github.com/google/uuid"
)

const (
	BookingReferencePrefix = "RSV"
	GroupReferencePrefix   = "GRP"

	referenceLength = 8
)

// referenceEncoding drops characters that are easy to misread (0/O, 1/I).
var referenceEncoding = base32.NewEncoding("23456789ABCDEFGHJKLMNPQRSTUVWXYZ").WithPadding(base32.NoPadding)

// NewReference returns a fresh reference with the given prefix, derived
// from a random UUID. Collisions are possible but rare; callers holding
// the unique index retry.
func NewReference(prefix string) string {
	id := uuid.New()
	encoded := referenceEncoding.EncodeToString(id[:])
	return prefix + "-" + encoded[:referenceLength]
}

// NewID returns a random identifier for internal rows.
func NewID() string {
	return uuid.NewString()
}
