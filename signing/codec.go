package signing

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
)

var errNoKidHeader = errors.New("token has no kid header")

// Codec signs, verifies, encrypts and decrypts tokens against a KeyStore.
// Signing always uses the currently active key for the requested algorithm;
// verification accepts any key still present in the set, which is what makes
// rotation safe for in-flight tokens.
type Codec struct {
	keys KeyStore
}

// NewCodec creates a Codec over the given key store.
func NewCodec(keys KeyStore) *Codec {
	return &Codec{keys: keys}
}

// Sign produces a compact JWS over the claims using the active signing key
// for the algorithm. The kid of the key used is placed in the header.
func (c *Codec) Sign(ctx context.Context, claims jwt.Claims, alg string) (string, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return "", fmt.Errorf("unsupported signing algorithm %s", alg)
	}

	key, err := c.keys.GetSigningKey(ctx, alg)
	if err != nil {
		return "", fmt.Errorf("failed to select signing key: %w", err)
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = key.Kid

	signed, err := token.SignedString(signingMaterial(key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a compact JWS, resolving the key by the kid
// header. When the header carries no kid, every verification key for the
// token's algorithm is tried in turn. Expired and not-yet-valid tokens are
// rejected.
func (c *Codec) Verify(ctx context.Context, tokenValue string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenValue, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errNoKidHeader
		}
		key, keyErr := c.keys.GetByKid(ctx, kid)
		if keyErr != nil {
			return nil, keyErr
		}
		if key.Use != UseSignature {
			return nil, fmt.Errorf("key %s is not a signature key", kid)
		}
		return verificationMaterial(key), nil
	})
	if err == nil && token.Valid {
		return claims, nil
	}
	if !errors.Is(err, errNoKidHeader) {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	// No kid: try every verification key for the declared algorithm.
	alg, _ := algOf(tokenValue)
	keys, keysErr := c.keys.GetByAlgorithm(ctx, alg, UseSignature)
	if keysErr != nil {
		return nil, fmt.Errorf("token verification failed: %w", keysErr)
	}
	for _, key := range keys {
		material := verificationMaterial(key)
		candidate := jwt.MapClaims{}
		parsed, parseErr := jwt.ParseWithClaims(tokenValue, candidate, func(*jwt.Token) (any, error) {
			return material, nil
		})
		if parseErr == nil && parsed.Valid {
			return candidate, nil
		}
		// Claim validation failures (exp, nbf) are terminal regardless of
		// which key signed the token.
		if parseErr != nil && !errors.Is(parseErr, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("token verification failed: %w", parseErr)
		}
	}
	return nil, fmt.Errorf("token verification failed: %w", jwt.ErrTokenSignatureInvalid)
}

// Encrypt wraps the payload as a compact JWE using the active
// encryption-use key for the algorithm, with A256GCM content encryption.
func (c *Codec) Encrypt(ctx context.Context, payload []byte, alg string) (string, error) {
	keys, err := c.keys.GetByAlgorithm(ctx, alg, UseEncryption)
	if err != nil {
		return "", fmt.Errorf("failed to select encryption key: %w", err)
	}
	key := keys[0]
	if key.RSAKey == nil {
		return "", fmt.Errorf("encryption key %s has no RSA material", key.Kid)
	}

	encrypter, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{
		Algorithm: jose.KeyAlgorithm(alg),
		Key:       &key.RSAKey.PublicKey,
		KeyID:     key.Kid,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build encrypter: %w", err)
	}

	obj, err := encrypter.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt payload: %w", err)
	}
	return obj.CompactSerialize()
}

// Decrypt unwraps a compact JWE produced by Encrypt, resolving the key by
// the kid header and falling back to every encryption key otherwise.
func (c *Codec) Decrypt(ctx context.Context, token string) ([]byte, error) {
	obj, err := jose.ParseEncrypted(token)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWE: %w", err)
	}

	if kid := obj.Header.KeyID; kid != "" {
		key, keyErr := c.keys.GetByKid(ctx, kid)
		if keyErr != nil {
			return nil, keyErr
		}
		if key.RSAKey == nil {
			return nil, fmt.Errorf("key %s cannot decrypt", kid)
		}
		return obj.Decrypt(key.RSAKey)
	}

	keys, err := c.keys.GetByAlgorithm(ctx, string(obj.Header.Algorithm), UseEncryption)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve decryption key: %w", err)
	}
	for _, key := range keys {
		if key.RSAKey == nil {
			continue
		}
		if plaintext, decErr := obj.Decrypt(key.RSAKey); decErr == nil {
			return plaintext, nil
		}
	}
	return nil, errors.New("no key could decrypt the token")
}

// TokenHash computes the OIDC at_hash/c_hash value: the base64url-encoded
// left half of the hash matching the signing algorithm's digest.
func TokenHash(alg, value string) (string, error) {
	var h hash.Hash
	switch {
	case strings.HasSuffix(alg, "256"):
		h = sha256.New()
	case strings.HasSuffix(alg, "384"):
		h = sha512.New384()
	case strings.HasSuffix(alg, "512"):
		h = sha512.New()
	default:
		return "", fmt.Errorf("no hash for algorithm %s", alg)
	}
	h.Write([]byte(value))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}

func signingMaterial(key *JSONWebKey) any {
	if key.RSAKey != nil {
		return key.RSAKey
	}
	return key.Secret
}

func verificationMaterial(key *JSONWebKey) any {
	if key.RSAKey != nil {
		return &key.RSAKey.PublicKey
	}
	return key.Secret
}

// algOf extracts the alg header of a compact JWS without verifying it.
func algOf(tokenValue string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenValue, jwt.MapClaims{})
	if err != nil {
		return "", err
	}
	alg, _ := token.Header["alg"].(string)
	return alg, nil
}
