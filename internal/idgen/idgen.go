// Package idgen generates random identifiers for scored events and batches.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// randomHex returns n random bytes hex-encoded. ID generation must not be
// able to fail, so an exhausted entropy source is fatal.
func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("idgen: crypto/rand: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// WithPrefix returns prefix + 24 random hex chars. Prefixes keep event IDs
// greppable across logs ("login_", "xfer_", "scan_", "batch_").
func WithPrefix(prefix string) string {
	return prefix + randomHex(12)
}

// Hex returns a random hex string of numBytes bytes.
func Hex(numBytes int) string {
	return randomHex(numBytes)
}
