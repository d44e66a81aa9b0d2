// Package identity derives stable conversation identifiers for
// peer-to-peer conversations without a server round trip.
package identity

import (
	"crypto/md5"
	"io"

	"github.com/google/uuid"
)

// Derive maps two user identifiers to one deterministic conversation
// identifier. The result is symmetric in its arguments: both sides of a
// direct conversation derive the same identifier regardless of who
// creates the record first.
//
// The identifiers are ordered lexicographically, digested with md5, and
// the version/variant bits are stamped so the result reads as a
// canonical 8-4-4-4-12 identifier.
func Derive(a, b string) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = b, a
	}

	h := md5.New()
	_, _ = io.WriteString(h, lo)
	_, _ = io.WriteString(h, hi)
	sum := h.Sum(nil)

	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80

	// md5 sums are always 16 bytes, FromBytes cannot fail.
	id, _ := uuid.FromBytes(sum)
	return id.String()
}
