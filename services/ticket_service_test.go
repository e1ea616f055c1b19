package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/audit"
)

func newTicketService(e *testEngine, resources domain.ResourceSetRepository) *TicketService {
	return NewTicketService(e.cfg, e.tickets, resources, audit.NewDefaultPublisher())
}

func TestTicketServiceRequestPermission(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	resources := newMemResourceStore(
		&domain.ResourceSet{ID: "rs-1", OwnerID: "owner-1", Scopes: []string{"read", "write"}},
		&domain.ResourceSet{ID: "rs-2", OwnerID: "owner-1", Scopes: []string{"list"}},
	)
	svc := newTicketService(e, resources)

	resp, err := svc.RequestPermission(ctx, "requester-1", []PermissionRequest{
		{ResourceSetID: "rs-1", Scopes: []string{"read", "write"}},
		{ResourceSetID: "rs-2", Scopes: []string{"list"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Ticket)

	ticket, err := e.tickets.GetTicket(ctx, resp.Ticket)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", ticket.OwnerID)
	assert.Equal(t, "requester-1", ticket.RequesterID)
	assert.Len(t, ticket.Lines, 2)
	assert.ElementsMatch(t, []string{"read", "write", "list"}, ticket.RequestedScopes())
	assert.False(t, ticket.Consumed)
}

func TestTicketServiceRequestPermissionRejections(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	resources := newMemResourceStore(
		&domain.ResourceSet{ID: "rs-1", OwnerID: "owner-1", Scopes: []string{"read"}},
		&domain.ResourceSet{ID: "rs-other", OwnerID: "owner-2", Scopes: []string{"read"}},
	)
	svc := newTicketService(e, resources)

	t.Run("empty request", func(t *testing.T) {
		_, err := svc.RequestPermission(ctx, "requester-1", nil)
		assertOAuthCode(t, err, serrors.InvalidRequest)
	})

	t.Run("unknown resource set", func(t *testing.T) {
		_, err := svc.RequestPermission(ctx, "requester-1", []PermissionRequest{
			{ResourceSetID: "ghost", Scopes: []string{"read"}},
		})
		assertOAuthCode(t, err, serrors.InvalidRequest)
	})

	t.Run("scope not exposed", func(t *testing.T) {
		_, err := svc.RequestPermission(ctx, "requester-1", []PermissionRequest{
			{ResourceSetID: "rs-1", Scopes: []string{"delete"}},
		})
		assertOAuthCode(t, err, serrors.InvalidScope)
	})

	t.Run("mixed owners", func(t *testing.T) {
		_, err := svc.RequestPermission(ctx, "requester-1", []PermissionRequest{
			{ResourceSetID: "rs-1", Scopes: []string{"read"}},
			{ResourceSetID: "rs-other", Scopes: []string{"read"}},
		})
		assertOAuthCode(t, err, serrors.InvalidRequest)
	})
}

func TestTicketServiceApprove(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	resources := newMemResourceStore(
		&domain.ResourceSet{ID: "rs-1", OwnerID: "owner-1", Scopes: []string{"read"}},
	)
	svc := newTicketService(e, resources)

	resp, err := svc.RequestPermission(ctx, "requester-1", []PermissionRequest{
		{ResourceSetID: "rs-1", Scopes: []string{"read"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Approve(ctx, resp.Ticket))
	ticket, err := e.tickets.GetTicket(ctx, resp.Ticket)
	require.NoError(t, err)
	assert.True(t, ticket.OwnerApproved)

	err = svc.Approve(ctx, "unknown-ticket")
	assertOAuthCode(t, err, serrors.InvalidRequest)
}
