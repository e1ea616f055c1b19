package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token string. Issued tokens are persisted keyed by
// this hash so a raw token value never doubles as a storage key.
func HashToken(token string) string {
	hasher := sha256.New()
	hasher.Write([]byte(token))
	hashedBytes := hasher.Sum(nil)
	return hex.EncodeToString(hashedBytes)
}
