package cache

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Hash returns the hex-encoded BLAKE3-256 digest of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
