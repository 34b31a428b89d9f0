// Package fingerprint computes content-addressed digests used for article
// deduplication and as classification cache keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the hex-encoded sha256 digest of the normalized title+body.
// Whitespace runs collapse to a single space, case is preserved, so trivial
// re-fetches of identical content map to the identical digest.
func Hash(title, body string) string {
	normalized := normalize(title) + "\n\n" + normalize(body)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// normalize collapses all whitespace runs into single spaces
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
