package services

import (
	"context"
	"crypto/x509"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
)

// ClientCredentialsGrant issues machine-to-machine tokens. The client
// itself is the subject and no owner claims are embedded.
type ClientCredentialsGrant struct {
	issuer *TokenIssuer
}

// NewClientCredentialsGrant creates the client_credentials grant handler.
func NewClientCredentialsGrant(issuer *TokenIssuer) *ClientCredentialsGrant {
	return &ClientCredentialsGrant{issuer: issuer}
}

// Execute implements GrantHandler.
func (g *ClientCredentialsGrant) Execute(ctx context.Context, req *TokenRequest, cli *client.Client, _ *x509.Certificate) (*api.TokenResponse, error) {
	if err := validateScope(req.Scope, cli); err != nil {
		return nil, err
	}

	scopes := splitScope(req.Scope)
	return g.issuer.IssueToken(ctx, IssueOptions{
		Client:              cli,
		GrantType:           api.GrantTypeClientCredentials,
		Scope:               req.Scope,
		IncludeRefreshToken: containsScope(scopes, "offline_access") && cli.HasScope("offline_access"),
	})
}
