package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicketRequestedScopes(t *testing.T) {
	ticket := &Ticket{
		Lines: []TicketLine{
			{ResourceSetID: "rs-1", Scopes: []string{"read", "write"}},
			{ResourceSetID: "rs-2", Scopes: []string{"read", "list"}},
		},
	}
	assert.ElementsMatch(t, []string{"read", "write", "list"}, ticket.RequestedScopes())
}

func TestConsentCovers(t *testing.T) {
	consent := &Consent{
		OwnerID:       "owner-1",
		RequesterID:   "requester-1",
		ResourceSetID: "rs-1",
		Scopes:        []string{"read", "write"},
	}

	assert.True(t, consent.Covers("rs-1", []string{"read"}))
	assert.True(t, consent.Covers("rs-1", []string{"read", "write"}))
	assert.False(t, consent.Covers("rs-1", []string{"read", "share"}))
	assert.False(t, consent.Covers("rs-2", []string{"read"}))
}

func TestExpiryHelpers(t *testing.T) {
	now := time.Now()
	code := &AuthCode{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, code.Expired(now))
	assert.True(t, code.Expired(now.Add(2*time.Minute)))

	device := &DeviceCode{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, device.Expired(now))
	assert.True(t, device.Expired(now.Add(2*time.Minute)))

	ticket := &Ticket{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, ticket.Expired(now))
	assert.True(t, ticket.Expired(now.Add(2*time.Minute)))
}

func TestTokenInfoProjection(t *testing.T) {
	now := time.Now()
	token := &Token{
		ID:        "t1",
		TokenType: "access_token",
		ClientID:  "client-1",
		UserID:    "user-1",
		Scope:     "read",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
		IsRevoked: true,
	}
	info := token.Info()
	assert.Equal(t, "t1", info.ID)
	assert.Equal(t, "client-1", info.ClientID)
	assert.Equal(t, now, info.IssuedAt)
	assert.True(t, info.IsRevoked)
}
