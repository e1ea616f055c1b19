package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/pilab-dev/shadow-uma/domain"
)

// MemoryDeviceAuthStore implements domain.DeviceAuthRepository using
// ttlcache, with a user_code index for the approval path. Status
// transitions are compare-and-swap under a mutex, so an approved
// device_code is redeemable at most once.
type MemoryDeviceAuthStore struct {
	mu         sync.Mutex
	cache      *ttlcache.Cache[string, *domain.DeviceCode]
	byUserCode map[string]string // user_code -> device_code
}

// NewMemoryDeviceAuthStore creates a new in-memory device authorization
// store.
func NewMemoryDeviceAuthStore() *MemoryDeviceAuthStore {
	store := &MemoryDeviceAuthStore{
		byUserCode: make(map[string]string),
	}

	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.DeviceCode](),
	)
	// Explicit deletes clean the index themselves under the store mutex;
	// reacting to them here as well would deadlock.
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *domain.DeviceCode]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		store.mu.Lock()
		delete(store.byUserCode, item.Value().UserCode)
		store.mu.Unlock()
	})

	go cache.Start()

	store.cache = cache
	return store
}

// deviceAuthRetention keeps a record around past its deadline so a late
// poll reports expired_token instead of an unknown device_code.
const deviceAuthRetention = 10 * time.Minute

// SaveDeviceAuth implements domain.DeviceAuthRepository.
func (s *MemoryDeviceAuthStore) SaveDeviceAuth(_ context.Context, auth *domain.DeviceCode) error {
	ttl := time.Until(auth.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(auth.DeviceCode, auth, ttl+deviceAuthRetention)
	s.byUserCode[auth.UserCode] = auth.DeviceCode
	return nil
}

// GetDeviceAuthByDeviceCode implements domain.DeviceAuthRepository. The
// returned record is a snapshot taken under the store mutex, so callers
// never observe a concurrent status transition mid-write.
func (s *MemoryDeviceAuthStore) GetDeviceAuthByDeviceCode(_ context.Context, deviceCode string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(deviceCode)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	auth := *item.Value()
	return &auth, nil
}

// GetDeviceAuthByUserCode implements domain.DeviceAuthRepository.
func (s *MemoryDeviceAuthStore) GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	deviceCode, ok := s.byUserCode[userCode]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetDeviceAuthByDeviceCode(ctx, deviceCode)
}

// UpdateDeviceAuthStatus implements domain.DeviceAuthRepository: the
// transition succeeds only when the record is still in the expected status.
func (s *MemoryDeviceAuthStore) UpdateDeviceAuthStatus(_ context.Context, deviceCode string, from, to domain.DeviceCodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(deviceCode)
	if item == nil {
		return domain.ErrNotFound
	}
	auth := item.Value()
	if auth.Status != from {
		return domain.ErrInvalidStatus
	}
	auth.Status = to
	return nil
}

// ApproveDeviceAuth implements domain.DeviceAuthRepository: the user is
// bound in the same critical section as the status transition, so a
// redeeming poller can never observe authorized without a user.
func (s *MemoryDeviceAuthStore) ApproveDeviceAuth(_ context.Context, deviceCode, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(deviceCode)
	if item == nil {
		return domain.ErrNotFound
	}
	auth := item.Value()
	if auth.Status != domain.DeviceCodeStatusPending {
		return domain.ErrInvalidStatus
	}
	auth.UserID = userID
	auth.Status = domain.DeviceCodeStatusAuthorized
	return nil
}

// UpdateDeviceAuthLastPolledAt implements domain.DeviceAuthRepository.
func (s *MemoryDeviceAuthStore) UpdateDeviceAuthLastPolledAt(_ context.Context, deviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(deviceCode)
	if item == nil {
		return domain.ErrNotFound
	}
	item.Value().LastPolledAt = time.Now().UTC()
	return nil
}

// RemoveDeviceAuth implements domain.DeviceAuthRepository.
func (s *MemoryDeviceAuthStore) RemoveDeviceAuth(_ context.Context, deviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(deviceCode)
	if item == nil {
		return domain.ErrNotFound
	}
	delete(s.byUserCode, item.Value().UserCode)
	s.cache.Delete(deviceCode)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryDeviceAuthStore) Close() error {
	s.cache.Stop()
	return nil
}
