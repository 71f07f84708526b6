package engine

import (
	"crypto/sha256"
	"encoding/hex"
)

func checksumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
