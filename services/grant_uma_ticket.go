package services

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/metrics"
	"github.com/pilab-dev/shadow-uma/signing"
)

// UMATicketGrant redeems a permission ticket for an RPT. Every line of the
// ticket must pass policy; the ticket is consumed exactly once even under
// concurrent redemption.
type UMATicketGrant struct {
	tickets   domain.TicketRepository
	resources domain.ResourceSetRepository
	policy    PolicyEvaluator
	codec     *signing.Codec
	issuer    *TokenIssuer
}

// NewUMATicketGrant creates the uma-ticket grant handler.
func NewUMATicketGrant(tickets domain.TicketRepository, resources domain.ResourceSetRepository, policy PolicyEvaluator, codec *signing.Codec, issuer *TokenIssuer) *UMATicketGrant {
	return &UMATicketGrant{
		tickets:   tickets,
		resources: resources,
		policy:    policy,
		codec:     codec,
		issuer:    issuer,
	}
}

// Execute implements GrantHandler.
func (g *UMATicketGrant) Execute(ctx context.Context, req *TokenRequest, cli *client.Client, _ *x509.Certificate) (*api.TokenResponse, error) {
	if req.Ticket == "" {
		return nil, serrors.NewInvalidRequest("missing ticket")
	}

	ticket, err := g.tickets.GetTicket(ctx, req.Ticket)
	if err != nil {
		return nil, serrors.NewInvalidGrant("unknown ticket")
	}
	if ticket.Expired(time.Now().UTC()) {
		return nil, serrors.NewInvalidGrant("ticket expired")
	}
	if ticket.Consumed {
		return nil, serrors.NewInvalidGrant("ticket already redeemed")
	}

	claims, err := g.pushedClaims(ctx, req.ClaimToken)
	if err != nil {
		return nil, err
	}

	requesterID := ticket.RequesterID
	if requesterID == "" {
		requesterID = claims["sub"]
	}

	for _, line := range ticket.Lines {
		rs, err := g.resources.GetResourceSet(ctx, line.ResourceSetID)
		if err != nil {
			return nil, serrors.NewInvalidGrant(fmt.Sprintf("unknown resource set %q", line.ResourceSetID))
		}
		decision, err := g.policy.Evaluate(ctx, PolicyInput{
			Resource:      rs,
			Line:          line,
			ClientID:      cli.ID,
			RequesterID:   requesterID,
			Claims:        claims,
			OwnerApproved: ticket.OwnerApproved,
		})
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			log.Debug().Str("ticket_id", ticket.ID).Str("resource_set_id", line.ResourceSetID).
				Str("reason", decision.Reason).Msg("policy denied ticket line")
			if len(decision.MissingClaims) > 0 {
				return nil, serrors.NewAccessDeniedWithClaims("request denied by policy", decision.MissingClaims)
			}
			return nil, serrors.NewAccessDenied("request denied by policy")
		}
	}

	// All lines passed; claim the ticket. The loser of a concurrent
	// redemption fails here.
	if err := g.tickets.MarkConsumed(ctx, ticket.ID); err != nil {
		return nil, serrors.NewInvalidGrant("ticket already redeemed")
	}

	resp, err := g.issuer.IssueToken(ctx, IssueOptions{
		Client:      cli,
		GrantType:   api.GrantTypeUmaTicket,
		Subject:     requesterID,
		Scope:       joinScope(ticket.RequestedScopes()),
		TokenType:   api.TokenTypeRPT,
		Permissions: ticket.Lines,
	})
	if err != nil {
		return nil, err
	}
	metrics.TicketsRedeemedTotal.Inc()
	return resp, nil
}

// pushedClaims verifies the optional claim token and flattens its string
// claims for policy matching. A claim token that fails verification is an
// invalid_grant, not an empty claim set.
func (g *UMATicketGrant) pushedClaims(ctx context.Context, claimToken string) (map[string]string, error) {
	if claimToken == "" {
		return nil, nil
	}
	verified, err := g.codec.Verify(ctx, claimToken)
	if err != nil {
		return nil, serrors.NewInvalidGrant("claim_token verification failed")
	}
	claims := make(map[string]string, len(verified))
	for name, value := range verified {
		if s, ok := value.(string); ok {
			claims[name] = s
		}
	}
	return claims, nil
}
