package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pilab-dev/shadow-uma/cache"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/config"
	"github.com/pilab-dev/shadow-uma/domain"
	"github.com/pilab-dev/shadow-uma/internal/audit"
	"github.com/pilab-dev/shadow-uma/signing"
)

// memClientStore is a map-backed client.ClientStore for tests.
type memClientStore struct {
	clients map[string]*client.Client
}

func newMemClientStore(clients ...*client.Client) *memClientStore {
	store := &memClientStore{clients: make(map[string]*client.Client)}
	for _, c := range clients {
		store.clients[c.ID] = c
	}
	return store
}

func (s *memClientStore) CreateClient(_ context.Context, c *client.Client) error {
	s.clients[c.ID] = c
	return nil
}

func (s *memClientStore) GetClient(_ context.Context, clientID string) (*client.Client, error) {
	c, ok := s.clients[clientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *memClientStore) UpdateClient(_ context.Context, c *client.Client) error {
	s.clients[c.ID] = c
	return nil
}

func (s *memClientStore) DeleteClient(_ context.Context, clientID string) error {
	delete(s.clients, clientID)
	return nil
}

// memConsentStore is a slice-backed domain.ConsentRepository for tests.
type memConsentStore struct {
	consents []*domain.Consent
}

func (s *memConsentStore) GetConsentsForUser(_ context.Context, ownerID, requesterID string) ([]*domain.Consent, error) {
	var out []*domain.Consent
	for _, c := range s.consents {
		if c.OwnerID == ownerID && c.RequesterID == requesterID {
			out = append(out, c)
		}
	}
	return out, nil
}

// memResourceStore is a map-backed domain.ResourceSetRepository for tests.
type memResourceStore struct {
	sets map[string]*domain.ResourceSet
}

func newMemResourceStore(sets ...*domain.ResourceSet) *memResourceStore {
	store := &memResourceStore{sets: make(map[string]*domain.ResourceSet)}
	for _, rs := range sets {
		store.sets[rs.ID] = rs
	}
	return store
}

func (s *memResourceStore) GetResourceSet(_ context.Context, id string) (*domain.ResourceSet, error) {
	rs, ok := s.sets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rs, nil
}

func (s *memResourceStore) GetOwner(_ context.Context, id string) (string, error) {
	rs, ok := s.sets[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return rs.OwnerID, nil
}

// testEngine wires a complete in-memory engine for tests.
type testEngine struct {
	cfg     *config.EngineConfig
	codec   *signing.Codec
	keys    *signing.MemoryKeyStore
	tokens  *cache.MemoryTokenStore
	codes   *cache.MemoryAuthCodeStore
	devices *cache.MemoryDeviceAuthStore
	tickets *cache.MemoryTicketStore
	issuer  *TokenIssuer
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	cfg := config.Default()
	keys := signing.NewMemoryKeyStore()
	key, err := signing.GenerateRSAKey("RS256", signing.UseSignature)
	require.NoError(t, err)
	require.NoError(t, keys.Rotate(context.Background(), key))

	codec := signing.NewCodec(keys)
	tokens := cache.NewMemoryTokenStore()
	t.Cleanup(func() { tokens.Close() })
	codes := cache.NewMemoryAuthCodeStore()
	t.Cleanup(func() { codes.Close() })
	devices := cache.NewMemoryDeviceAuthStore()
	t.Cleanup(func() { devices.Close() })
	tickets := cache.NewMemoryTicketStore()
	t.Cleanup(func() { tickets.Close() })

	return &testEngine{
		cfg:     cfg,
		codec:   codec,
		keys:    keys,
		tokens:  tokens,
		codes:   codes,
		devices: devices,
		tickets: tickets,
		issuer:  NewTokenIssuer(cfg, codec, tokens, audit.NewDefaultPublisher()),
	}
}

func testClient(id string, grantTypes ...string) *client.Client {
	return &client.Client{
		ID:                id,
		Secrets:           []client.Secret{{Type: client.SecretTypeShared, Value: "s3cret"}},
		Type:              client.Confidential,
		AllowedScopes:     []string{"openid", "profile", "read", "write", "offline_access"},
		AllowedGrantTypes: grantTypes,
		TokenEndpointAuth: client.AuthMethodSecretBasic,
		IsActive:          true,
	}
}

func saveAuthCode(t *testing.T, e *testEngine, code *domain.AuthCode) *domain.AuthCode {
	t.Helper()
	if code.ExpiresAt.IsZero() {
		code.ExpiresAt = time.Now().Add(e.cfg.AuthCodeTTL)
	}
	require.NoError(t, e.codes.SaveAuthCode(context.Background(), code))
	return code
}

func verifyClaims(t *testing.T, e *testEngine, token string) map[string]any {
	t.Helper()
	claims, err := e.codec.Verify(context.Background(), token)
	require.NoError(t, err)
	return claims
}
