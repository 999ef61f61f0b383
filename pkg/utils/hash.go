package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// HashString derives a short stable key from input. The digest is truncated
// to 16 bytes, which keeps cache keys compact without meaningful collision
// risk at this corpus size.
func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:16])
}

// NormalizeEventKey canonicalizes a life-event description for use as a
// weight-table key, so subjects who phrase the same event with different
// spacing or casing share the learned weight. Deliberately limited to
// whitespace and case folding; anything smarter (punctuation stripping,
// synonym folding) changes which events pool their learning and needs a
// product decision first.
func NormalizeEventKey(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}
