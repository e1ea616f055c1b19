package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/internal/metrics"
	"github.com/pilab-dev/shadow-uma/signing"
)

// KeyManager rotates the server's signing and encryption keys and exposes
// the published key set. Rotation never invalidates in-flight tokens: the
// retired key stays in the set for verification until purged.
type KeyManager struct {
	keys signing.KeyStore
}

// NewKeyManager creates a KeyManager over the key store.
func NewKeyManager(keys signing.KeyStore) *KeyManager {
	return &KeyManager{keys: keys}
}

// RotateSigningKey generates and activates a fresh RSA signing key for the
// algorithm.
func (m *KeyManager) RotateSigningKey(ctx context.Context, alg string) (*signing.JSONWebKey, error) {
	return m.rotate(ctx, alg, signing.UseSignature)
}

// RotateEncryptionKey generates and activates a fresh RSA encryption key
// for the algorithm.
func (m *KeyManager) RotateEncryptionKey(ctx context.Context, alg string) (*signing.JSONWebKey, error) {
	return m.rotate(ctx, alg, signing.UseEncryption)
}

func (m *KeyManager) rotate(ctx context.Context, alg string, use signing.KeyUse) (*signing.JSONWebKey, error) {
	key, err := signing.GenerateRSAKey(alg, use)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := m.keys.Rotate(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to rotate key: %w", err)
	}

	metrics.KeyRotationsTotal.Inc()
	log.Info().Str("kid", key.Kid).Str("alg", alg).Str("use", string(use)).
		Msg("key rotated")
	return key, nil
}

// PublishedKeys returns the current public JWKS document content.
func (m *KeyManager) PublishedKeys(ctx context.Context) ([]*signing.PublicJWK, error) {
	return m.keys.GetPublicKeys(ctx)
}

// Retire removes a previously rotated-out key; tokens signed with it stop
// verifying.
func (m *KeyManager) Retire(ctx context.Context, kid string) error {
	return m.keys.Purge(ctx, kid)
}
