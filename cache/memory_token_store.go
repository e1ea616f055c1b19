package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/pilab-dev/shadow-uma/domain"
)

// MemoryTokenStore implements domain.TokenRepository using ttlcache. Tokens
// are keyed by the hash of their value and evicted once expired.
type MemoryTokenStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.Token]
}

// NewMemoryTokenStore creates a new in-memory token store with automatic
// cleanup of expired entries.
func NewMemoryTokenStore() *MemoryTokenStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.Token](),
	)

	go cache.Start()

	return &MemoryTokenStore{
		cache: cache,
	}
}

// StoreToken implements domain.TokenRepository.
func (s *MemoryTokenStore) StoreToken(_ context.Context, token *domain.Token) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrExpired
	}
	s.cache.Set(HashToken(token.TokenValue), token, ttl)
	return nil
}

// GetToken implements domain.TokenRepository. The returned token is a
// snapshot taken under the store mutex, so callers never observe a
// concurrent revocation mid-write.
func (s *MemoryTokenStore) GetToken(_ context.Context, tokenValue string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(HashToken(tokenValue))
	if item == nil {
		return nil, domain.ErrNotFound
	}
	token := *item.Value()
	return &token, nil
}

// RevokeToken implements domain.TokenRepository. Revoking an unknown token
// is not an error, but revoking an already revoked one reports
// ErrAlreadyConsumed: that is the conditional write refresh rotation
// depends on.
func (s *MemoryTokenStore) RevokeToken(_ context.Context, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(HashToken(tokenValue))
	if item == nil {
		return nil
	}
	if item.Value().IsRevoked {
		return domain.ErrAlreadyConsumed
	}
	item.Value().IsRevoked = true
	return nil
}

// GetTokenInfo implements domain.TokenRepository.
func (s *MemoryTokenStore) GetTokenInfo(ctx context.Context, tokenValue string) (*domain.TokenInfo, error) {
	token, err := s.GetToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	return token.Info(), nil
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()
	return nil
}
