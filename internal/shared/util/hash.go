package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashScope returns a filesystem-safe identifier for a storage scope.
func HashScope(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
