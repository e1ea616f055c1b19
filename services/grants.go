package services

import (
	"context"
	"crypto/x509"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/metrics"
)

// TokenRequest is the parameter set of a token endpoint request. Which
// fields matter depends on the grant type.
type TokenRequest struct {
	GrantType string
	Scope     string

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// password
	Username string
	Password string

	// refresh_token
	RefreshToken string

	// device_code
	DeviceCode string

	// uma-ticket
	Ticket     string
	ClaimToken string
}

// GrantHandler validates one grant type's artifact and produces a granted
// token through the issuer. Implementations return *serrors.OAuth2Error for
// every protocol-level failure; nothing panics across this boundary.
type GrantHandler interface {
	Execute(ctx context.Context, req *TokenRequest, cli *client.Client, cert *x509.Certificate) (*api.TokenResponse, error)
}

// GrantRegistry dispatches token requests to the handler registered for
// their grant type, after authenticating the client. There is deliberately
// no switch over grant type strings anywhere else.
type GrantRegistry struct {
	authenticator *ClientAuthenticator
	handlers      map[string]GrantHandler
}

// NewGrantRegistry creates an empty registry over the authenticator.
func NewGrantRegistry(authenticator *ClientAuthenticator) *GrantRegistry {
	return &GrantRegistry{
		authenticator: authenticator,
		handlers:      make(map[string]GrantHandler),
	}
}

// Register binds a grant type to its handler. Later registrations replace
// earlier ones.
func (r *GrantRegistry) Register(grantType string, handler GrantHandler) {
	r.handlers[grantType] = handler
}

// Execute runs the full token request pipeline: authenticate the client,
// check the grant type is registered and allowed for the client, then let
// the handler adjudicate. All failures come back as *serrors.OAuth2Error.
func (r *GrantRegistry) Execute(ctx context.Context, req *TokenRequest, auth ClientAuthentication, cert *x509.Certificate) (*api.TokenResponse, error) {
	if req == nil || req.GrantType == "" {
		return nil, fail(serrors.NewInvalidRequest("missing grant_type"))
	}

	handler, ok := r.handlers[req.GrantType]
	if !ok {
		return nil, fail(serrors.NewUnsupportedGrantType(req.GrantType))
	}

	cli, err := r.authenticator.Authenticate(ctx, auth, cert)
	if err != nil {
		return nil, fail(asOAuthError(err))
	}

	if !cli.HasGrantType(req.GrantType) {
		return nil, fail(serrors.NewUnauthorizedClient("grant type not allowed for this client"))
	}

	resp, err := handler.Execute(ctx, req, cli, cert)
	if err != nil {
		oauthErr := asOAuthError(err)
		if !oauthErr.Retryable() {
			log.Debug().Str("grant_type", req.GrantType).Str("client_id", cli.ID).
				Str("error", oauthErr.Code).Msg("token request failed")
		}
		return nil, fail(oauthErr)
	}
	return resp, nil
}

// asOAuthError normalizes any handler error to a protocol error; unexpected
// internals surface as server_error without leaking details.
func asOAuthError(err error) *serrors.OAuth2Error {
	var oauthErr *serrors.OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	log.Error().Err(err).Msg("internal error during token request")
	return serrors.NewServerError("internal error")
}

func fail(err *serrors.OAuth2Error) *serrors.OAuth2Error {
	metrics.IssuanceFailuresTotal.WithLabelValues(err.Code).Inc()
	return err
}
