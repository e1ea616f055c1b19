package services

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
)

// AuthorizationCodeGrant redeems single-use authorization codes. The code
// is consumed atomically before validation, so a replayed code fails with
// invalid_grant no matter how the race interleaves.
type AuthorizationCodeGrant struct {
	codes  domain.AuthCodeRepository
	issuer *TokenIssuer
}

// NewAuthorizationCodeGrant creates the authorization_code grant handler.
func NewAuthorizationCodeGrant(codes domain.AuthCodeRepository, issuer *TokenIssuer) *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{
		codes:  codes,
		issuer: issuer,
	}
}

// Execute implements GrantHandler.
func (g *AuthorizationCodeGrant) Execute(ctx context.Context, req *TokenRequest, cli *client.Client, _ *x509.Certificate) (*api.TokenResponse, error) {
	if req.Code == "" {
		return nil, serrors.NewInvalidRequest("missing code")
	}

	authCode, err := g.codes.ConsumeAuthCode(ctx, req.Code)
	if err != nil {
		return nil, serrors.NewInvalidGrant("authorization code is invalid, expired or already used")
	}

	if authCode.Expired(time.Now().UTC()) {
		return nil, serrors.NewInvalidGrant("authorization code expired")
	}
	if authCode.ClientID != cli.ID {
		return nil, serrors.NewInvalidGrant("authorization code was issued to another client")
	}
	if authCode.RedirectURI != req.RedirectURI {
		return nil, serrors.NewInvalidGrant("redirect_uri mismatch")
	}

	switch {
	case authCode.CodeChallenge != "":
		if err := validatePKCE(authCode.CodeChallenge, authCode.CodeChallengeMethod, req.CodeVerifier); err != nil {
			return nil, err
		}
	case cli.RequirePKCE:
		return nil, serrors.NewPKCERequired()
	}

	scopes := splitScope(authCode.Scope)
	return g.issuer.IssueToken(ctx, IssueOptions{
		Client:              cli,
		GrantType:           api.GrantTypeAuthorizationCode,
		Subject:             authCode.UserID,
		Scope:               authCode.Scope,
		IncludeRefreshToken: containsScope(scopes, "offline_access"),
		IncludeIDToken:      containsScope(scopes, "openid"),
		AuthorizationCode:   req.Code,
	})
}
