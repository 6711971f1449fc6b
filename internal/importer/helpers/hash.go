// Package helpers provides the content digests used for import
// deduplication.
package helpers

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Sha256String calculates the SHA256 hash of a given string and returns its string representation.
func Sha256String(input string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(input)))
}

// Join builds the canonical tuple representation that is hashed for
// file and row digests. Fields are joined with a separator that cannot
// occur in normalized content.
func Join(fields ...string) string {
	return strings.Join(fields, "\x1f")
}
