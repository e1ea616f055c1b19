package services

import (
	"context"
	"crypto/x509"

	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
)

// PasswordGrant exchanges resource owner credentials for tokens. The
// credential check is delegated to a chain of authenticators; the first
// one that recognizes the login wins.
type PasswordGrant struct {
	authenticators []domain.ResourceOwnerAuthenticator
	issuer         *TokenIssuer
}

// NewPasswordGrant creates the password grant handler.
func NewPasswordGrant(issuer *TokenIssuer, authenticators ...domain.ResourceOwnerAuthenticator) *PasswordGrant {
	return &PasswordGrant{
		authenticators: authenticators,
		issuer:         issuer,
	}
}

// Execute implements GrantHandler.
func (g *PasswordGrant) Execute(ctx context.Context, req *TokenRequest, cli *client.Client, _ *x509.Certificate) (*api.TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, serrors.NewInvalidRequest("missing username or password")
	}
	if err := validateScope(req.Scope, cli); err != nil {
		return nil, err
	}

	var owner *domain.ResourceOwner
	for _, a := range g.authenticators {
		o, err := a.Authenticate(ctx, req.Username, req.Password)
		if err != nil {
			log.Debug().Err(err).Str("username", req.Username).
				Msg("authenticator rejected resource owner credentials")
			continue
		}
		if o != nil {
			owner = o
			break
		}
	}
	if owner == nil {
		return nil, serrors.NewInvalidGrant("invalid resource owner credentials")
	}

	amr := owner.AMR
	if len(amr) == 0 {
		amr = []string{"pwd"}
	}

	scopes := splitScope(req.Scope)
	return g.issuer.IssueToken(ctx, IssueOptions{
		Client:              cli,
		GrantType:           api.GrantTypePassword,
		Subject:             owner.ID,
		Scope:               req.Scope,
		AMR:                 amr,
		Claims:              owner.Claims,
		IncludeRefreshToken: containsScope(scopes, "offline_access"),
		IncludeIDToken:      containsScope(scopes, "openid"),
	})
}
