package client

import (
	"time"
)

// ClientType represents the type of OAuth2 client
type ClientType string

const (
	// Confidential clients can securely store secrets
	Confidential ClientType = "confidential"
	// Public clients cannot securely store secrets (mobile apps, SPAs)
	Public ClientType = "public"
)

// SecretType discriminates how a registered client secret is matched.
type SecretType string

const (
	// SecretTypeShared is a plain shared secret compared in constant time.
	SecretTypeShared SecretType = "shared_secret"
	// SecretTypeX5TS256 is a base64url SHA-256 thumbprint of the client's
	// mTLS certificate.
	SecretTypeX5TS256 SecretType = "x5t#S256"
)

// Secret is one registered client credential.
type Secret struct {
	Type  SecretType `json:"type"`
	Value string     `json:"value"`
}

// Token endpoint authentication methods.
const (
	AuthMethodSecretBasic   = "client_secret_basic"
	AuthMethodSecretPost    = "client_secret_post"
	AuthMethodPrivateKeyJWT = "private_key_jwt"
	AuthMethodTLSClientAuth = "tls_client_auth"
	AuthMethodNone          = "none"
)

// Client represents an OAuth2 client application. A Client is immutable for
// the duration of a token request; it is mutated only through management
// operations outside this engine.
//
//nolint:tagliatelle
type Client struct {
	ID                string     `json:"client_id"`
	Secrets           []Secret   `json:"secrets,omitempty"`
	Type              ClientType `json:"type,omitempty"`
	Name              string     `json:"name,omitempty"`
	RedirectURIs      []string   `json:"redirect_uris,omitempty"`
	AllowedScopes     []string   `json:"allowed_scopes,omitempty"`
	AllowedGrantTypes []string   `json:"allowed_grant_types,omitempty"`
	TokenEndpointAuth string     `json:"token_endpoint_auth_method,omitempty"`
	RequirePKCE       bool       `json:"require_pkce,omitempty"`

	// TokenLifetime bounds access tokens issued to this client. Zero means
	// the server default applies.
	TokenLifetime time.Duration `json:"token_lifetime,omitempty"`

	// SigningAlg selects the JWS algorithm for tokens issued to this
	// client; empty selects the server default. EncryptionAlg, when set,
	// additionally wraps issued tokens as JWE.
	SigningAlg    string `json:"signing_alg,omitempty"`
	EncryptionAlg string `json:"encryption_alg,omitempty"`

	// JWKS holds keys registered by the client, used to verify
	// private_key_jwt assertions.
	JWKS *JWKS `json:"jwks,omitempty"`

	// ClaimPatterns is the allow-list of resource-owner claim names
	// (shell-style patterns) copied into tokens issued for this client.
	ClaimPatterns []string `json:"claim_patterns,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	IsActive  bool      `json:"is_active,omitempty"`
}

// HasGrantType reports whether the grant type is allowed for this client.
func (c *Client) HasGrantType(grantType string) bool {
	for _, gt := range c.AllowedGrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// HasScope reports whether a single scope is allowed for this client.
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// SecretsOfType returns the registered secrets matching the given type.
func (c *Client) SecretsOfType(t SecretType) []Secret {
	var out []Secret
	for _, s := range c.Secrets {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// JWKS represents a JSON Web Key Set registered for client authentication
type JWKS struct {
	Keys []JSONWebKey `json:"keys"`
}

// JSONWebKey represents a public key in JWK format
type JSONWebKey struct {
	Kid string `json:"kid"`         // Key ID
	Kty string `json:"kty"`         // Key type
	Alg string `json:"alg"`         // Algorithm
	Use string `json:"use"`         // Key usage (e.g., "sig" for signature)
	N   string `json:"n,omitempty"` // RSA modulus
	E   string `json:"e,omitempty"` // RSA public exponent
}
