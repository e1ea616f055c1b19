package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilab-dev/shadow-uma/api"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/audit"
)

func newRegistry(e *testEngine, clients *memClientStore) *GrantRegistry {
	registry := NewGrantRegistry(NewClientAuthenticator(clients, e.cfg.Issuer))
	registry.Register(api.GrantTypeClientCredentials, NewClientCredentialsGrant(e.issuer))
	registry.Register(api.GrantTypeAuthorizationCode, NewAuthorizationCodeGrant(e.codes, e.issuer))
	registry.Register(api.GrantTypeRefreshToken, NewRefreshTokenGrant(e.cfg, e.tokens, e.issuer))
	registry.Register(api.GrantTypeDeviceCode, NewDeviceCodeGrant(e.devices, e.issuer))
	return registry
}

func TestGrantRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	cli := testClient("client-1", api.GrantTypeClientCredentials)
	registry := newRegistry(e, newMemClientStore(cli))
	auth := ClientAuthentication{ClientID: "client-1", ClientSecret: "s3cret"}

	resp, err := registry.Execute(ctx, &TokenRequest{
		GrantType: api.GrantTypeClientCredentials,
		Scope:     "read",
	}, auth, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "read", resp.Scope)
}

func TestGrantRegistryMissingGrantType(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	registry := newRegistry(e, newMemClientStore())

	_, err := registry.Execute(ctx, &TokenRequest{}, ClientAuthentication{}, nil)
	assertOAuthCode(t, err, serrors.InvalidRequest)
}

func TestGrantRegistryUnsupportedGrantType(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	cli := testClient("client-1", "urn:custom:grant")
	registry := newRegistry(e, newMemClientStore(cli))

	_, err := registry.Execute(ctx, &TokenRequest{
		GrantType: "urn:custom:grant",
	}, ClientAuthentication{ClientID: "client-1", ClientSecret: "s3cret"}, nil)
	assertOAuthCode(t, err, serrors.UnsupportedGrantType)
}

func TestGrantRegistryUnauthenticatedClient(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	cli := testClient("client-1", api.GrantTypeClientCredentials)
	registry := newRegistry(e, newMemClientStore(cli))

	_, err := registry.Execute(ctx, &TokenRequest{
		GrantType: api.GrantTypeClientCredentials,
	}, ClientAuthentication{ClientID: "client-1", ClientSecret: "wrong"}, nil)
	assertOAuthCode(t, err, serrors.InvalidClient)
}

func TestGrantRegistryGrantNotAllowedForClient(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	// The client authenticates fine but is only registered for the
	// authorization code flow.
	cli := testClient("client-1", api.GrantTypeAuthorizationCode)
	registry := newRegistry(e, newMemClientStore(cli))

	_, err := registry.Execute(ctx, &TokenRequest{
		GrantType: api.GrantTypeClientCredentials,
	}, ClientAuthentication{ClientID: "client-1", ClientSecret: "s3cret"}, nil)
	assertOAuthCode(t, err, serrors.UnauthorizedClient)
}

// TestDeviceFlowEndToEnd walks the full device flow through the public
// surfaces: start, poll pending, approve, poll again, redeem.
func TestDeviceFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	e.cfg.DevicePollInterval = 0

	cli := testClient("tv-app", api.GrantTypeDeviceCode)
	clients := newMemClientStore(cli)
	registry := newRegistry(e, clients)
	device := NewDeviceAuthorizationService(e.cfg, e.devices, clients, audit.NewDefaultPublisher())

	started, err := device.Start(ctx, "tv-app", "openid offline_access")
	require.NoError(t, err)

	auth := ClientAuthentication{ClientID: "tv-app", ClientSecret: "s3cret"}
	req := &TokenRequest{GrantType: api.GrantTypeDeviceCode, DeviceCode: started.DeviceCode}

	_, err = registry.Execute(ctx, req, auth, nil)
	require.ErrorIs(t, err, serrors.ErrAuthorizationPending)

	require.NoError(t, device.Approve(ctx, started.UserCode, "user-1"))

	resp, err := registry.Execute(ctx, req, auth, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	claims := verifyClaims(t, e, resp.AccessToken)
	assert.Equal(t, "user-1", claims["sub"])
}
