// Package checksum digests note content. The digest doubles as the
// note's ETag for optimistic concurrency over HTTP.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a digest as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// FromETag strips the surrounding quotes from an If-Match header
// value. A bare digest passes through unchanged.
func FromETag(tag string) string {
	return strings.Trim(tag, `"`)
}
