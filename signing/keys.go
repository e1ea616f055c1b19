package signing

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyUse declares what a key is for.
type KeyUse string

const (
	UseSignature  KeyUse = "sig"
	UseEncryption KeyUse = "enc"
)

// JSONWebKey is one key in the server's key set. Signature keys are either
// RSA private keys or HMAC secrets; encryption keys are RSA private keys
// whose public half wraps the content-encryption key.
type JSONWebKey struct {
	Kid       string
	Alg       string // e.g. "RS256", "HS256", "RSA-OAEP-256"
	Use       KeyUse
	KeyOps    []string
	RSAKey    *rsa.PrivateKey // Set for RSA keys
	Secret    []byte          // Set for symmetric keys
	CreatedAt time.Time
}

// PublicJWK is the published form of a key, RFC 7517 shaped. Symmetric keys
// are never published.
//
//nolint:tagliatelle
type PublicJWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// Public exports the publishable form of the key, or nil for symmetric keys.
func (k *JSONWebKey) Public() *PublicJWK {
	if k.RSAKey == nil {
		return nil
	}
	pub := &k.RSAKey.PublicKey
	return &PublicJWK{
		Kid: k.Kid,
		Kty: "RSA",
		Alg: k.Alg,
		Use: string(k.Use),
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// GenerateRSAKey generates a new 2048-bit RSA key for the given algorithm
// and use, with a fresh kid.
func GenerateRSAKey(alg string, use KeyUse) (*JSONWebKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return &JSONWebKey{
		Kid:       uuid.NewString(),
		Alg:       alg,
		Use:       use,
		KeyOps:    keyOpsFor(use),
		RSAKey:    priv,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewSymmetricKey wraps a shared secret as an HMAC signing key.
func NewSymmetricKey(alg string, secret []byte) *JSONWebKey {
	return &JSONWebKey{
		Kid:       uuid.NewString(),
		Alg:       alg,
		Use:       UseSignature,
		KeyOps:    keyOpsFor(UseSignature),
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
}

func keyOpsFor(use KeyUse) []string {
	if use == UseEncryption {
		return []string{"wrapKey", "unwrapKey"}
	}
	return []string{"sign", "verify"}
}

//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE

// KeyStore holds the server's JSON Web Key Set. Exactly one signing key per
// algorithm is active at any instant; retired keys stay available for
// verification until purged. Rotate publishes the new key before the old
// one stops being active, so an in-flight Sign never references a deleted
// key.
type KeyStore interface {
	// GetSigningKey returns the active signing key for the algorithm.
	GetSigningKey(ctx context.Context, alg string) (*JSONWebKey, error)
	// GetByAlgorithm returns every key of the given use and algorithm,
	// active first.
	GetByAlgorithm(ctx context.Context, alg string, use KeyUse) ([]*JSONWebKey, error)
	// GetByKid resolves a single key by its id.
	GetByKid(ctx context.Context, kid string) (*JSONWebKey, error)
	// GetPublicKeys returns the publishable key set.
	GetPublicKeys(ctx context.Context) ([]*PublicJWK, error)
	// Rotate publishes the key and makes it the active one for its
	// algorithm and use. The previously active key is retained.
	Rotate(ctx context.Context, key *JSONWebKey) error
	// Purge removes a retired key. Purging the active key is an error.
	Purge(ctx context.Context, kid string) error
}

type activeSlot struct {
	alg string
	use KeyUse
}

// MemoryKeyStore is an in-memory KeyStore. The key set is copy-on-rotate:
// readers always observe a complete set, never a partially rotated one.
type MemoryKeyStore struct {
	mu     sync.RWMutex
	byKid  map[string]*JSONWebKey
	active map[activeSlot]string // slot -> kid
	order  []string              // kids in publication order
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		byKid:  make(map[string]*JSONWebKey),
		active: make(map[activeSlot]string),
	}
}

// GetSigningKey implements KeyStore.
func (s *MemoryKeyStore) GetSigningKey(_ context.Context, alg string) (*JSONWebKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kid, ok := s.active[activeSlot{alg: alg, use: UseSignature}]
	if !ok {
		return nil, fmt.Errorf("no active signing key for algorithm %s", alg)
	}
	return s.byKid[kid], nil
}

// GetByAlgorithm implements KeyStore.
func (s *MemoryKeyStore) GetByAlgorithm(_ context.Context, alg string, use KeyUse) ([]*JSONWebKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activeKid := s.active[activeSlot{alg: alg, use: use}]

	var keys []*JSONWebKey
	if k, ok := s.byKid[activeKid]; ok {
		keys = append(keys, k)
	}
	for _, kid := range s.order {
		if kid == activeKid {
			continue
		}
		k := s.byKid[kid]
		if k != nil && k.Alg == alg && k.Use == use {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no keys for algorithm %s (%s)", alg, use)
	}
	return keys, nil
}

// GetByKid implements KeyStore.
func (s *MemoryKeyStore) GetByKid(_ context.Context, kid string) (*JSONWebKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.byKid[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %s", kid)
	}
	return k, nil
}

// GetPublicKeys implements KeyStore.
func (s *MemoryKeyStore) GetPublicKeys(_ context.Context) ([]*PublicJWK, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*PublicJWK, 0, len(s.order))
	for _, kid := range s.order {
		if pub := s.byKid[kid].Public(); pub != nil {
			keys = append(keys, pub)
		}
	}
	return keys, nil
}

// Rotate implements KeyStore: the key becomes visible for verification and
// active for signing in a single critical section.
func (s *MemoryKeyStore) Rotate(_ context.Context, key *JSONWebKey) error {
	if key == nil || key.Kid == "" {
		return fmt.Errorf("rotation requires a key with a kid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKid[key.Kid]; exists {
		return fmt.Errorf("key %s already published", key.Kid)
	}
	s.byKid[key.Kid] = key
	s.order = append(s.order, key.Kid)
	s.active[activeSlot{alg: key.Alg, use: key.Use}] = key.Kid
	return nil
}

// Purge implements KeyStore.
func (s *MemoryKeyStore) Purge(_ context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byKid[kid]
	if !ok {
		return fmt.Errorf("unknown key id %s", kid)
	}
	if s.active[activeSlot{alg: key.Alg, use: key.Use}] == kid {
		return fmt.Errorf("cannot purge active key %s", kid)
	}
	delete(s.byKid, kid)
	for i, id := range s.order {
		if id == kid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
