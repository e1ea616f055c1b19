package services

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/config"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
)

// RefreshTokenGrant exchanges a refresh token for a fresh token set. In
// rotation mode the presented token is revoked first, so concurrent
// redemptions of the same value resolve to exactly one winner.
type RefreshTokenGrant struct {
	cfg    *config.EngineConfig
	tokens domain.TokenRepository
	issuer *TokenIssuer
}

// NewRefreshTokenGrant creates the refresh_token grant handler.
func NewRefreshTokenGrant(cfg *config.EngineConfig, tokens domain.TokenRepository, issuer *TokenIssuer) *RefreshTokenGrant {
	return &RefreshTokenGrant{
		cfg:    cfg,
		tokens: tokens,
		issuer: issuer,
	}
}

// Execute implements GrantHandler.
func (g *RefreshTokenGrant) Execute(ctx context.Context, req *TokenRequest, cli *client.Client, _ *x509.Certificate) (*api.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, serrors.NewInvalidRequest("missing refresh_token")
	}

	stored, err := g.tokens.GetToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, serrors.NewInvalidGrant("refresh token is invalid")
	}
	if stored.TokenType != api.TokenTypeRefreshToken {
		return nil, serrors.NewInvalidGrant("token is not a refresh token")
	}
	if stored.IsRevoked {
		return nil, serrors.NewInvalidGrant("refresh token has been revoked")
	}
	if time.Now().UTC().After(stored.ExpiresAt) {
		return nil, serrors.NewInvalidGrant("refresh token expired")
	}
	if stored.ClientID != cli.ID {
		return nil, serrors.NewInvalidGrant("refresh token was issued to another client")
	}

	// A refresh may narrow the granted scope but never widen it.
	scope := stored.Scope
	if req.Scope != "" {
		granted := splitScope(stored.Scope)
		for _, s := range splitScope(req.Scope) {
			if !containsScope(granted, s) {
				return nil, serrors.NewInvalidScope("requested scope exceeds the original grant")
			}
		}
		scope = req.Scope
	}

	rotate := g.cfg.RefreshRotationMode == config.RefreshRotationRotate
	if rotate {
		// Revoking is a conditional write; the loser of a concurrent
		// redemption sees ErrAlreadyConsumed here.
		if err := g.tokens.RevokeToken(ctx, req.RefreshToken); err != nil {
			return nil, serrors.NewInvalidGrant("refresh token already redeemed")
		}
	}

	return g.issuer.IssueToken(ctx, IssueOptions{
		Client:              cli,
		GrantType:           api.GrantTypeRefreshToken,
		Subject:             stored.UserID,
		Scope:               scope,
		AMR:                 stored.AMR,
		IncludeRefreshToken: rotate,
		IncludeIDToken:      containsScope(splitScope(scope), "openid"),
	})
}
