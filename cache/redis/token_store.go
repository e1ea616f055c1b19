package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pilab-dev/shadow-uma/cache"
	"github.com/pilab-dev/shadow-uma/domain"
)

// TokenStore implements domain.TokenRepository backed by Redis. Tokens are
// stored as JSON keyed by the hash of their value, with the entry TTL bound
// to the token expiry.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a new [TokenStore] instance.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
	}
}

func (r *TokenStore) redisKey(tokenValue string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(tokenValue))
}

// StoreToken implements domain.TokenRepository.
func (r *TokenStore) StoreToken(ctx context.Context, token *domain.Token) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrExpired
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(token.TokenValue), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}

// GetToken implements domain.TokenRepository.
func (r *TokenStore) GetToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	payload, err := r.client.Get(ctx, r.redisKey(tokenValue)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token from Redis: %w", err)
	}

	var token domain.Token
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// RevokeToken implements domain.TokenRepository. Revoking an unknown token
// is a no-op; revoking an already revoked one reports ErrAlreadyConsumed.
func (r *TokenStore) RevokeToken(ctx context.Context, tokenValue string) error {
	key := r.redisKey(tokenValue)

	token, err := r.GetToken(ctx, tokenValue)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if token.IsRevoked {
		return domain.ErrAlreadyConsumed
	}

	token.IsRevoked = true
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	// KeepTTL preserves the original expiry of the tombstoned entry.
	if err := r.client.Set(ctx, key, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to revoke token in Redis: %w", err)
	}
	return nil
}

// GetTokenInfo implements domain.TokenRepository.
func (r *TokenStore) GetTokenInfo(ctx context.Context, tokenValue string) (*domain.TokenInfo, error) {
	token, err := r.GetToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	return token.Info(), nil
}
