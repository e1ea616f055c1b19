package services

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/client"
	serrors "github.com/pilab-dev/shadow-uma/errors"
)

// ClientAuthentication carries the credentials a token request presented.
// At most one of ClientSecret, ClientAssertion or the mTLS certificate is
// consulted, selected by the client's registered auth method.
type ClientAuthentication struct {
	ClientID            string
	ClientSecret        string
	ClientAssertionType string
	ClientAssertion     string

	// AuthorizationHeader, when set, is parsed as HTTP Basic and overrides
	// ClientID/ClientSecret.
	AuthorizationHeader string
}

const assertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// ClientAuthenticator validates client identity against the client's
// registered token endpoint auth method. It has no side effects.
type ClientAuthenticator struct {
	clients client.ClientStore
	issuer  string
}

// NewClientAuthenticator creates a new ClientAuthenticator.
func NewClientAuthenticator(clients client.ClientStore, issuer string) *ClientAuthenticator {
	return &ClientAuthenticator{
		clients: clients,
		issuer:  issuer,
	}
}

// Authenticate resolves and validates the requesting client. Every failure
// maps to invalid_client; the distinction is only logged.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, auth ClientAuthentication, cert *x509.Certificate) (*client.Client, error) {
	clientID, secret := auth.ClientID, auth.ClientSecret
	if auth.AuthorizationHeader != "" {
		basicID, basicSecret, ok := parseBasicAuth(auth.AuthorizationHeader)
		if ok {
			clientID, secret = basicID, basicSecret
		}
	}
	if clientID == "" && auth.ClientAssertion != "" {
		// private_key_jwt carries the client id in the assertion subject.
		clientID = assertionSubject(auth.ClientAssertion)
	}
	if clientID == "" {
		return nil, serrors.NewInvalidClient("missing client identification")
	}

	cli, err := a.clients.GetClient(ctx, clientID)
	if err != nil || cli == nil {
		return nil, serrors.NewInvalidClient("unknown client")
	}
	if !cli.IsActive {
		return nil, serrors.NewInvalidClient("client is disabled")
	}

	switch cli.TokenEndpointAuth {
	case client.AuthMethodSecretBasic, client.AuthMethodSecretPost:
		if err := a.validateSharedSecret(cli, secret); err != nil {
			return nil, err
		}
	case client.AuthMethodPrivateKeyJWT:
		if err := a.validateAssertion(cli, auth); err != nil {
			return nil, err
		}
	case client.AuthMethodTLSClientAuth:
		if err := a.validateCertificate(cli, cert); err != nil {
			return nil, err
		}
	case client.AuthMethodNone:
		// Public client, nothing to verify.
	default:
		log.Warn().Str("client_id", cli.ID).Str("method", cli.TokenEndpointAuth).
			Msg("client registered with unknown token endpoint auth method")
		return nil, serrors.NewInvalidClient("unsupported authentication method")
	}

	return cli, nil
}

func (a *ClientAuthenticator) validateSharedSecret(cli *client.Client, secret string) error {
	if secret == "" {
		return serrors.NewInvalidClient("missing client secret")
	}
	for _, registered := range cli.SecretsOfType(client.SecretTypeShared) {
		if subtle.ConstantTimeCompare([]byte(registered.Value), []byte(secret)) == 1 {
			return nil
		}
	}
	return serrors.NewInvalidClient("invalid client secret")
}

func (a *ClientAuthenticator) validateAssertion(cli *client.Client, auth ClientAuthentication) error {
	if auth.ClientAssertionType != assertionTypeJWTBearer {
		return serrors.NewInvalidClient("unsupported client assertion type")
	}
	if auth.ClientAssertion == "" {
		return serrors.NewInvalidClient("missing client assertion")
	}
	if cli.JWKS == nil || len(cli.JWKS.Keys) == 0 {
		return serrors.NewInvalidClient("client has no registered keys")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(auth.ClientAssertion, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return resolveClientKey(cli.JWKS, kid)
	})
	if err != nil || !token.Valid {
		return serrors.NewInvalidClient("invalid client assertion")
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	if iss != cli.ID || sub != cli.ID {
		return serrors.NewInvalidClient("assertion issuer/subject mismatch")
	}
	return nil
}

func (a *ClientAuthenticator) validateCertificate(cli *client.Client, cert *x509.Certificate) error {
	if cert == nil {
		return serrors.NewInvalidClient("missing client certificate")
	}
	sum := sha256.Sum256(cert.Raw)
	thumbprint := base64.RawURLEncoding.EncodeToString(sum[:])
	for _, registered := range cli.SecretsOfType(client.SecretTypeX5TS256) {
		if subtle.ConstantTimeCompare([]byte(registered.Value), []byte(thumbprint)) == 1 {
			return nil
		}
	}
	return serrors.NewInvalidClient("certificate thumbprint not registered")
}

// resolveClientKey builds an RSA public key from a registered client JWK.
// With a kid the match is exact; without one the first signature key wins.
func resolveClientKey(jwks *client.JWKS, kid string) (*rsa.PublicKey, error) {
	for i := range jwks.Keys {
		k := &jwks.Keys[i]
		if k.Kty != "RSA" {
			continue
		}
		if kid != "" && k.Kid != kid {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, serrors.NewInvalidClient("malformed registered key")
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, serrors.NewInvalidClient("malformed registered key")
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}, nil
	}
	return nil, serrors.NewInvalidClient("no matching registered key")
}

// assertionSubject extracts the sub claim without verifying the assertion;
// verification happens against the resolved client's keys.
func assertionSubject(assertion string) string {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(assertion, claims); err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

func parseBasicAuth(header string) (string, string, bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	id, secret, ok := strings.Cut(string(decoded), ":")
	return id, secret, ok
}
