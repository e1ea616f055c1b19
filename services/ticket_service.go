package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/config"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/audit"
	"github.com/pilab-dev/shadow-uma/internal/metrics"
)

// PermissionRequest is one requested (resource set, scopes) pair at the
// permission endpoint.
type PermissionRequest struct {
	ResourceSetID string   `json:"resource_id"`
	Scopes        []string `json:"resource_scopes"`
}

// TicketService mints and manages UMA permission tickets.
type TicketService struct {
	cfg       *config.EngineConfig
	tickets   domain.TicketRepository
	resources domain.ResourceSetRepository
	events    audit.Publisher
}

// NewTicketService creates a TicketService.
func NewTicketService(cfg *config.EngineConfig, tickets domain.TicketRepository, resources domain.ResourceSetRepository, events audit.Publisher) *TicketService {
	return &TicketService{
		cfg:       cfg,
		tickets:   tickets,
		resources: resources,
		events:    events,
	}
}

// RequestPermission validates the requested lines against their resource
// sets and mints a single-use ticket covering all of them. All lines must
// name the same resource owner.
func (s *TicketService) RequestPermission(ctx context.Context, requesterID string, requests []PermissionRequest) (*api.PermissionTicketResponse, error) {
	if len(requests) == 0 {
		return nil, serrors.NewInvalidRequest("no permissions requested")
	}

	now := time.Now().UTC()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TicketTTL),
	}

	for _, req := range requests {
		if req.ResourceSetID == "" || len(req.Scopes) == 0 {
			return nil, serrors.NewInvalidRequest("each permission needs a resource id and at least one scope")
		}
		rs, err := s.resources.GetResourceSet(ctx, req.ResourceSetID)
		if err != nil {
			return nil, serrors.NewInvalidRequest(fmt.Sprintf("unknown resource set %q", req.ResourceSetID))
		}
		for _, scope := range req.Scopes {
			if !containsScope(rs.Scopes, scope) {
				return nil, serrors.NewInvalidScope(
					fmt.Sprintf("resource set %q does not expose scope %q", req.ResourceSetID, scope))
			}
		}

		owner, err := s.resources.GetOwner(ctx, req.ResourceSetID)
		if err != nil {
			return nil, serrors.NewServerError("cannot resolve resource owner")
		}
		if ticket.OwnerID == "" {
			ticket.OwnerID = owner
		} else if ticket.OwnerID != owner {
			return nil, serrors.NewInvalidRequest("permissions span multiple resource owners")
		}

		ticket.Lines = append(ticket.Lines, domain.TicketLine{
			ResourceSetID: req.ResourceSetID,
			Scopes:        req.Scopes,
		})
	}

	if err := s.tickets.SaveTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to save permission ticket: %w", err)
	}

	s.events.Publish(ctx, audit.Event{
		Action:   audit.ActionTicketCreated,
		Subject:  ticket.OwnerID,
		Success:  true,
		TicketID: ticket.ID,
	})
	metrics.TicketsCreatedTotal.Inc()

	return &api.PermissionTicketResponse{Ticket: ticket.ID}, nil
}

// Approve records the resource owner's explicit approval of a pending
// ticket, which satisfies consent-requiring policy rules at redemption.
func (s *TicketService) Approve(ctx context.Context, ticketID string) error {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return serrors.NewInvalidRequest("unknown ticket")
	}
	if ticket.Expired(time.Now().UTC()) {
		return serrors.NewInvalidGrant("ticket expired")
	}
	if ticket.Consumed {
		return serrors.NewInvalidGrant("ticket already redeemed")
	}
	if err := s.tickets.ApproveAccess(ctx, ticketID); err != nil {
		return fmt.Errorf("failed to approve ticket: %w", err)
	}

	s.events.Publish(ctx, audit.Event{
		Action:   audit.ActionTicketApproved,
		Subject:  ticket.OwnerID,
		Success:  true,
		TicketID: ticketID,
	})
	return nil
}
