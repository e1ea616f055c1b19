package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/pilab-dev/shadow-uma/domain"
)

// MemoryTicketStore implements domain.TicketRepository using ttlcache.
// MarkConsumed is a compare-and-swap on the consumed flag, so a ticket is
// redeemable exactly once even under concurrent redemption attempts.
type MemoryTicketStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.Ticket]
}

// NewMemoryTicketStore creates a new in-memory permission ticket store.
func NewMemoryTicketStore() *MemoryTicketStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.Ticket](),
	)

	go cache.Start()

	return &MemoryTicketStore{
		cache: cache,
	}
}

// SaveTicket implements domain.TicketRepository.
func (s *MemoryTicketStore) SaveTicket(_ context.Context, ticket *domain.Ticket) error {
	ttl := time.Until(ticket.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrExpired
	}
	s.cache.Set(ticket.ID, ticket, ttl)
	return nil
}

// GetTicket implements domain.TicketRepository. The returned ticket is a
// snapshot taken under the store mutex, so callers never observe a
// concurrent MarkConsumed mid-write.
func (s *MemoryTicketStore) GetTicket(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(ticketID)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	ticket := *item.Value()
	return &ticket, nil
}

// ApproveAccess implements domain.TicketRepository.
func (s *MemoryTicketStore) ApproveAccess(_ context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(ticketID)
	if item == nil {
		return domain.ErrNotFound
	}
	ticket := item.Value()
	if ticket.Consumed {
		return domain.ErrAlreadyConsumed
	}
	ticket.OwnerApproved = true
	return nil
}

// MarkConsumed implements domain.TicketRepository: of two concurrent
// redemptions, exactly one succeeds.
func (s *MemoryTicketStore) MarkConsumed(_ context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(ticketID)
	if item == nil {
		return domain.ErrNotFound
	}
	ticket := item.Value()
	if ticket.Consumed {
		return domain.ErrAlreadyConsumed
	}
	ticket.Consumed = true
	ticket.ConsumedAt = time.Now().UTC()
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryTicketStore) Close() error {
	s.cache.Stop()
	return nil
}
