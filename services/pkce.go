package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	serrors "github.com/pilab-dev/shadow-uma/errors"
)

// PKCE code challenge methods (RFC 7636).
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// validatePKCE checks a code verifier against the challenge stored with the
// authorization code, per the method declared at authorization time.
func validatePKCE(challenge, method, verifier string) error {
	if verifier == "" {
		return serrors.NewInvalidPKCE("missing code_verifier")
	}

	switch method {
	case PKCEMethodPlain:
		if subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) != 1 {
			return serrors.NewInvalidPKCE("code_verifier does not match")
		}
	case PKCEMethodS256, "":
		// S256 is the default method when none was recorded.
		h := sha256.Sum256([]byte(verifier))
		calculated := base64.RawURLEncoding.EncodeToString(h[:])
		if subtle.ConstantTimeCompare([]byte(challenge), []byte(calculated)) != 1 {
			return serrors.NewInvalidPKCE("code_verifier does not match")
		}
	default:
		return serrors.NewInvalidPKCE("unsupported code_challenge_method")
	}
	return nil
}
