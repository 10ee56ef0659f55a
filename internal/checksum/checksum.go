// Package checksum computes content digests for pages and data snapshots.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters of Sum, used in log lines and
// catalog listings.
func Short(data []byte) string {
	return Sum(data)[:12]
}
