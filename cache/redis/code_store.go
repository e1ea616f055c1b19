package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pilab-dev/shadow-uma/domain"
)

// AuthCodeStore implements domain.AuthCodeRepository backed by Redis.
// Consumption uses GETDEL, so the single-use invariant holds across every
// process sharing the Redis instance.
type AuthCodeStore struct {
	client *redis.Client
	prefix string
}

// NewAuthCodeStore creates a new [AuthCodeStore] instance.
func NewAuthCodeStore(client *redis.Client, prefix string) *AuthCodeStore {
	return &AuthCodeStore{
		client: client,
		prefix: prefix,
	}
}

func (r *AuthCodeStore) redisKey(code string) string {
	return fmt.Sprintf("%s:authcode:%s", r.prefix, code)
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (r *AuthCodeStore) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrExpired
	}

	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal auth code: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(code.Code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store auth code in Redis: %w", err)
	}
	return nil
}

// GetAuthCode implements domain.AuthCodeRepository.
func (r *AuthCodeStore) GetAuthCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	payload, err := r.client.Get(ctx, r.redisKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read auth code from Redis: %w", err)
	}

	var authCode domain.AuthCode
	if err := json.Unmarshal(payload, &authCode); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth code: %w", err)
	}
	return &authCode, nil
}

// ConsumeAuthCode implements domain.AuthCodeRepository. GETDEL returns the
// value and removes the key in one step; a concurrent second consumer
// observes redis.Nil and reports ErrAlreadyConsumed.
func (r *AuthCodeStore) ConsumeAuthCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	payload, err := r.client.GetDel(ctx, r.redisKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrAlreadyConsumed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume auth code in Redis: %w", err)
	}

	var authCode domain.AuthCode
	if err := json.Unmarshal(payload, &authCode); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth code: %w", err)
	}
	return &authCode, nil
}
