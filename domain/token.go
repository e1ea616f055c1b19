package domain

import "time"

// TokenInfo represents metadata about a token, used for introspection.
type TokenInfo struct {
	ID        string    `json:"id"`         // Unique token identifier (jti)
	TokenType string    `json:"token_type"` // "access_token" or "refresh_token"
	ClientID  string    `json:"client_id"`  // Client that the token was issued to
	UserID    string    `json:"user_id"`    // User that authorized the token
	Scope     string    `json:"scope"`      // Authorized scopes
	IssuedAt  time.Time `json:"issued_at"`  // When the token was issued
	ExpiresAt time.Time `json:"expires_at"` // When the token expires
	IsRevoked bool      `json:"is_revoked"` // Whether token has been revoked
}

// Token represents a persisted OAuth token. The TokenValue of signed tokens
// is stored keyed by its hash; the struct itself is never mutated after
// creation, only revoked or superseded by rotation.
type Token struct {
	ID         string    `json:"id"`
	TokenType  string    `json:"token_type"`
	TokenValue string    `json:"token_value"`
	ClientID   string    `json:"client_id"`
	UserID     string    `json:"user_id,omitempty"`
	Scope      string    `json:"scope,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	IsRevoked  bool      `json:"is_revoked,omitempty"`
	Issuer     string    `json:"issuer,omitempty"`

	// AMR records how the subject authenticated, carried into the signed
	// claims of tokens derived from this one.
	AMR []string `json:"amr,omitempty"`
}

// Info projects the token to its introspection metadata.
func (t *Token) Info() *TokenInfo {
	return &TokenInfo{
		ID:        t.ID,
		TokenType: t.TokenType,
		ClientID:  t.ClientID,
		UserID:    t.UserID,
		Scope:     t.Scope,
		IssuedAt:  t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		IsRevoked: t.IsRevoked,
	}
}
