package signing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyStoreRotate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyStore()

	_, err := store.GetSigningKey(ctx, "RS256")
	assert.Error(t, err, "empty store has no active key")

	first, err := GenerateRSAKey("RS256", UseSignature)
	require.NoError(t, err)
	require.NoError(t, store.Rotate(ctx, first))

	active, err := store.GetSigningKey(ctx, "RS256")
	require.NoError(t, err)
	assert.Equal(t, first.Kid, active.Kid)

	second, err := GenerateRSAKey("RS256", UseSignature)
	require.NoError(t, err)
	require.NoError(t, store.Rotate(ctx, second))

	active, err = store.GetSigningKey(ctx, "RS256")
	require.NoError(t, err)
	assert.Equal(t, second.Kid, active.Kid)

	// The retired key stays resolvable for verification.
	retired, err := store.GetByKid(ctx, first.Kid)
	require.NoError(t, err)
	assert.Equal(t, first.Kid, retired.Kid)

	keys, err := store.GetByAlgorithm(ctx, "RS256", UseSignature)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, second.Kid, keys[0].Kid, "active key is listed first")
}

func TestMemoryKeyStoreRotateRejectsDuplicateKid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyStore()

	key, err := GenerateRSAKey("RS256", UseSignature)
	require.NoError(t, err)
	require.NoError(t, store.Rotate(ctx, key))
	assert.Error(t, store.Rotate(ctx, key))
}

func TestMemoryKeyStorePurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyStore()

	first, err := GenerateRSAKey("RS256", UseSignature)
	require.NoError(t, err)
	require.NoError(t, store.Rotate(ctx, first))

	// The active key cannot be purged.
	assert.Error(t, store.Purge(ctx, first.Kid))

	second, err := GenerateRSAKey("RS256", UseSignature)
	require.NoError(t, err)
	require.NoError(t, store.Rotate(ctx, second))

	require.NoError(t, store.Purge(ctx, first.Kid))
	_, err = store.GetByKid(ctx, first.Kid)
	assert.Error(t, err)
}

func TestMemoryKeyStorePublicKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyStore()

	rsaKey, err := GenerateRSAKey("RS256", UseSignature)
	require.NoError(t, err)
	require.NoError(t, store.Rotate(ctx, rsaKey))
	require.NoError(t, store.Rotate(ctx, NewSymmetricKey("HS256", []byte("secret"))))

	pub, err := store.GetPublicKeys(ctx)
	require.NoError(t, err)
	require.Len(t, pub, 1, "symmetric keys are never published")
	assert.Equal(t, rsaKey.Kid, pub[0].Kid)
	assert.Equal(t, "RSA", pub[0].Kty)
	assert.NotEmpty(t, pub[0].N)
	assert.NotEmpty(t, pub[0].E)
}
