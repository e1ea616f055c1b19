package services

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// generateRandomString generates a secure random string of given length in
// bytes, hex encoded.
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateUserCode generates a user-friendly code from an unambiguous
// charset, grouped for readability (e.g. "ABCD-EFGH").
func generateUserCode(length int, charset string, chunkSize int) (string, error) {
	// Rejection sampling keeps the draw uniform: bytes at or above the
	// largest multiple of the charset size are redrawn instead of wrapped.
	limit := 256 - 256%len(charset)
	b := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(b) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, v := range buf {
			if int(v) >= limit {
				continue
			}
			b = append(b, charset[int(v)%len(charset)])
			if len(b) == length {
				break
			}
		}
	}

	if chunkSize <= 0 {
		return string(b), nil
	}

	var result strings.Builder
	for i, char := range b {
		if i > 0 && i%chunkSize == 0 {
			result.WriteString("-")
		}
		result.WriteByte(char)
	}
	return result.String(), nil
}
