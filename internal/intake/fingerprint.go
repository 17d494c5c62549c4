package intake

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex sha256 of data, the only deduplication key
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
