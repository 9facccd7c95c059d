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

// Fields digests parts joined by a unit separator, so ("ab","c") and ("a","bc") differ.
func Fields(parts ...string) string {
	return Sum([]byte(strings.Join(parts, "\x1f")))
}
