package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/pilab-dev/shadow-uma/domain"
)

// MemoryAuthCodeStore implements domain.AuthCodeRepository using ttlcache.
// Consumption is guarded by a mutex so two concurrent redemptions of the
// same code can never both succeed.
type MemoryAuthCodeStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.AuthCode]
}

// NewMemoryAuthCodeStore creates a new in-memory authorization code store.
func NewMemoryAuthCodeStore() *MemoryAuthCodeStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.AuthCode](),
	)

	go cache.Start()

	return &MemoryAuthCodeStore{
		cache: cache,
	}
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (s *MemoryAuthCodeStore) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrExpired
	}
	s.cache.Set(code.Code, code, ttl)
	return nil
}

// GetAuthCode implements domain.AuthCodeRepository. The returned code is a
// snapshot taken under the store mutex.
func (s *MemoryAuthCodeStore) GetAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(code)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	snapshot := *item.Value()
	return &snapshot, nil
}

// ConsumeAuthCode implements domain.AuthCodeRepository: an atomic
// check-and-delete. The second caller observes ErrAlreadyConsumed.
func (s *MemoryAuthCodeStore) ConsumeAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(code)
	if item == nil {
		return nil, domain.ErrAlreadyConsumed
	}
	snapshot := *item.Value()
	s.cache.Delete(code)
	return &snapshot, nil
}

// Close stops the cleanup goroutine.
func (s *MemoryAuthCodeStore) Close() error {
	s.cache.Stop()
	return nil
}
