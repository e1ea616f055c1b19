package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilab-dev/shadow-uma/domain"
)

func TestMemoryTokenStoreRevokeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	defer store.Close()

	token := &domain.Token{
		ID:         "t1",
		TokenType:  "refresh_token",
		TokenValue: "refresh-value",
		ClientID:   "client-1",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, store.StoreToken(ctx, token))

	got, err := store.GetToken(ctx, "refresh-value")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	require.NoError(t, store.RevokeToken(ctx, "refresh-value"))
	assert.ErrorIs(t, store.RevokeToken(ctx, "refresh-value"), domain.ErrAlreadyConsumed)

	got, err = store.GetToken(ctx, "refresh-value")
	require.NoError(t, err)
	assert.True(t, got.IsRevoked)

	// Revoking a token that was never stored is not an error.
	assert.NoError(t, store.RevokeToken(ctx, "never-stored"))
}

func TestMemoryTokenStoreRejectsExpired(t *testing.T) {
	store := NewMemoryTokenStore()
	defer store.Close()

	err := store.StoreToken(context.Background(), &domain.Token{
		TokenValue: "stale",
		ExpiresAt:  time.Now().Add(-time.Minute),
	})
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestMemoryTokenStoreGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	defer store.Close()

	require.NoError(t, store.StoreToken(ctx, &domain.Token{
		TokenValue: "refresh-value",
		TokenType:  "refresh_token",
		ExpiresAt:  time.Now().Add(time.Hour),
	}))

	before, err := store.GetToken(ctx, "refresh-value")
	require.NoError(t, err)
	require.NoError(t, store.RevokeToken(ctx, "refresh-value"))

	// The earlier fetch is unaffected by the revocation.
	assert.False(t, before.IsRevoked)

	after, err := store.GetToken(ctx, "refresh-value")
	require.NoError(t, err)
	assert.True(t, after.IsRevoked)
}

func TestMemoryAuthCodeStoreConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAuthCodeStore()
	defer store.Close()

	code := &domain.AuthCode{
		Code:      "code-1",
		ClientID:  "client-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, store.SaveAuthCode(ctx, code))

	got, err := store.ConsumeAuthCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	_, err = store.ConsumeAuthCode(ctx, "code-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyConsumed)
}

func TestMemoryAuthCodeStoreConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAuthCodeStore()
	defer store.Close()

	require.NoError(t, store.SaveAuthCode(ctx, &domain.AuthCode{
		Code:      "code-1",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}))

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeAuthCode(ctx, "code-1"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one consumer wins")
}

func TestMemoryDeviceAuthStoreTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeviceAuthStore()
	defer store.Close()

	auth := &domain.DeviceCode{
		ID:         "d1",
		DeviceCode: "device-code-1",
		UserCode:   "BCDF-GHJK",
		ClientID:   "client-1",
		Status:     domain.DeviceCodeStatusPending,
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, store.SaveDeviceAuth(ctx, auth))

	byUser, err := store.GetDeviceAuthByUserCode(ctx, "BCDF-GHJK")
	require.NoError(t, err)
	assert.Equal(t, "device-code-1", byUser.DeviceCode)

	require.NoError(t, store.ApproveDeviceAuth(ctx, "device-code-1", "user-1"))
	got, err := store.GetDeviceAuthByDeviceCode(ctx, "device-code-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceCodeStatusAuthorized, got.Status)
	assert.Equal(t, "user-1", got.UserID)

	// A second approval finds the record no longer pending.
	assert.ErrorIs(t, store.ApproveDeviceAuth(ctx, "device-code-1", "user-2"), domain.ErrInvalidStatus)

	require.NoError(t, store.UpdateDeviceAuthStatus(ctx, "device-code-1",
		domain.DeviceCodeStatusAuthorized, domain.DeviceCodeStatusRedeemed))
	assert.ErrorIs(t, store.UpdateDeviceAuthStatus(ctx, "device-code-1",
		domain.DeviceCodeStatusAuthorized, domain.DeviceCodeStatusRedeemed), domain.ErrInvalidStatus)

	require.NoError(t, store.RemoveDeviceAuth(ctx, "device-code-1"))
	_, err = store.GetDeviceAuthByUserCode(ctx, "BCDF-GHJK")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryDeviceAuthStoreConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeviceAuthStore()
	defer store.Close()

	require.NoError(t, store.SaveDeviceAuth(ctx, &domain.DeviceCode{
		DeviceCode: "device-code-1",
		UserCode:   "BCDF-GHJK",
		Status:     domain.DeviceCodeStatusAuthorized,
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}))

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.UpdateDeviceAuthStatus(ctx, "device-code-1",
				domain.DeviceCodeStatusAuthorized, domain.DeviceCodeStatusRedeemed)
			if err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one redeemer wins")
}

func TestMemoryDeviceAuthStoreGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeviceAuthStore()
	defer store.Close()

	require.NoError(t, store.SaveDeviceAuth(ctx, &domain.DeviceCode{
		DeviceCode: "device-code-1",
		UserCode:   "BCDF-GHJK",
		Status:     domain.DeviceCodeStatusPending,
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}))

	before, err := store.GetDeviceAuthByDeviceCode(ctx, "device-code-1")
	require.NoError(t, err)
	require.NoError(t, store.ApproveDeviceAuth(ctx, "device-code-1", "user-1"))

	assert.Equal(t, domain.DeviceCodeStatusPending, before.Status)
	assert.Empty(t, before.UserID)

	after, err := store.GetDeviceAuthByDeviceCode(ctx, "device-code-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceCodeStatusAuthorized, after.Status)
	assert.Equal(t, "user-1", after.UserID)
}

func TestMemoryDeviceAuthStoreOutlivesExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeviceAuthStore()
	defer store.Close()

	require.NoError(t, store.SaveDeviceAuth(ctx, &domain.DeviceCode{
		DeviceCode: "device-code-1",
		UserCode:   "BCDF-GHJK",
		Status:     domain.DeviceCodeStatusPending,
		ExpiresAt:  time.Now().Add(30 * time.Millisecond),
	}))
	time.Sleep(50 * time.Millisecond)

	// Past the deadline the record is still resolvable, so a late poll can
	// be answered with expired_token rather than an unknown device_code.
	got, err := store.GetDeviceAuthByDeviceCode(ctx, "device-code-1")
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now()))
}

func TestMemoryTicketStoreConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()
	defer store.Close()

	ticket := &domain.Ticket{
		ID:        "ticket-1",
		OwnerID:   "owner-1",
		Lines:     []domain.TicketLine{{ResourceSetID: "rs-1", Scopes: []string{"read"}}},
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, store.SaveTicket(ctx, ticket))

	require.NoError(t, store.ApproveAccess(ctx, "ticket-1"))
	got, err := store.GetTicket(ctx, "ticket-1")
	require.NoError(t, err)
	assert.True(t, got.OwnerApproved)

	require.NoError(t, store.MarkConsumed(ctx, "ticket-1"))
	assert.ErrorIs(t, store.MarkConsumed(ctx, "ticket-1"), domain.ErrAlreadyConsumed)
	assert.ErrorIs(t, store.ApproveAccess(ctx, "ticket-1"), domain.ErrAlreadyConsumed)

	got, err = store.GetTicket(ctx, "ticket-1")
	require.NoError(t, err)
	assert.True(t, got.Consumed)
	assert.False(t, got.ConsumedAt.IsZero())
}

func TestMemoryTicketStoreGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()
	defer store.Close()

	require.NoError(t, store.SaveTicket(ctx, &domain.Ticket{
		ID:        "ticket-1",
		OwnerID:   "owner-1",
		Lines:     []domain.TicketLine{{ResourceSetID: "rs-1", Scopes: []string{"read"}}},
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}))

	before, err := store.GetTicket(ctx, "ticket-1")
	require.NoError(t, err)
	require.NoError(t, store.MarkConsumed(ctx, "ticket-1"))

	assert.False(t, before.Consumed)

	after, err := store.GetTicket(ctx, "ticket-1")
	require.NoError(t, err)
	assert.True(t, after.Consumed)
}

func TestHashTokenStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
