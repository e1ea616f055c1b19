package services

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/config"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/audit"
	"github.com/pilab-dev/shadow-uma/internal/metrics"
	"github.com/pilab-dev/shadow-uma/signing"
)

// IssueOptions describes one successful grant adjudication, ready to be
// turned into a signed token.
type IssueOptions struct {
	Client    *client.Client
	GrantType string
	Subject   string
	Scope     string
	AMR       []string

	// Claims are raw resource-owner claims; only those matching the
	// client's claim pattern allow-list end up in the token.
	Claims map[string]string

	// TokenType defaults to access_token; UMA redemptions issue an RPT.
	TokenType string

	IncludeRefreshToken bool
	IncludeIDToken      bool

	// AuthorizationCode, when set, adds a c_hash to the id token.
	AuthorizationCode string

	// Permissions become the RPT's authorization.permissions claim.
	Permissions []domain.TicketLine
}

// TokenIssuer orchestrates claim building, signing, optional encryption,
// persistence and auditing of granted tokens.
type TokenIssuer struct {
	cfg    *config.EngineConfig
	codec  *signing.Codec
	tokens domain.TokenRepository
	events audit.Publisher
}

// NewTokenIssuer creates a new TokenIssuer.
func NewTokenIssuer(cfg *config.EngineConfig, codec *signing.Codec, tokens domain.TokenRepository, events audit.Publisher) *TokenIssuer {
	return &TokenIssuer{
		cfg:    cfg,
		codec:  codec,
		tokens: tokens,
		events: events,
	}
}

// IssueToken builds, signs and persists the granted token set. Cancellation
// before persistence leaves no partially issued token visible. Every
// outcome, success or failure, is published as an audit event before the
// caller sees it.
func (i *TokenIssuer) IssueToken(ctx context.Context, opts IssueOptions) (*api.TokenResponse, error) {
	resp, err := i.issue(ctx, opts)
	if err != nil {
		i.events.Publish(ctx, audit.Event{
			Action:    audit.ActionTokenFailed,
			ClientID:  opts.Client.ID,
			Subject:   opts.Subject,
			GrantType: opts.GrantType,
			Scope:     opts.Scope,
			Success:   false,
			Error:     err.Error(),
		})
		return nil, err
	}
	return resp, nil
}

func (i *TokenIssuer) issue(ctx context.Context, opts IssueOptions) (*api.TokenResponse, error) {
	now := time.Now().UTC()
	lifetime := opts.Client.TokenLifetime
	if lifetime <= 0 {
		lifetime = i.cfg.AccessTokenTTL
	}
	expiresAt := now.Add(lifetime)

	alg := opts.Client.SigningAlg
	if alg == "" {
		alg = i.cfg.DefaultSigningAlg
	}

	tokenType := opts.TokenType
	if tokenType == "" {
		tokenType = api.TokenTypeAccessToken
	}

	tokenID := uuid.NewString()
	claims := jwt.MapClaims{
		"iss": i.cfg.Issuer,
		"aud": jwt.ClaimStrings{opts.Client.ID},
		"exp": jwt.NewNumericDate(expiresAt).Unix(),
		"iat": jwt.NewNumericDate(now).Unix(),
		"nbf": jwt.NewNumericDate(now).Unix(),
		"jti": tokenID,
	}
	if opts.Subject != "" {
		claims["sub"] = opts.Subject
	}
	if opts.Scope != "" {
		claims["scope"] = opts.Scope
	}
	if len(opts.AMR) > 0 {
		claims["amr"] = opts.AMR
	}
	for name, value := range filterClaims(opts.Claims, opts.Client.ClaimPatterns) {
		if _, reserved := claims[name]; !reserved {
			claims[name] = value
		}
	}
	if len(opts.Permissions) > 0 {
		perms := make([]map[string]any, 0, len(opts.Permissions))
		for _, line := range opts.Permissions {
			perms = append(perms, map[string]any{
				"rsid":   line.ResourceSetID,
				"scopes": line.Scopes,
			})
		}
		claims["authorization"] = map[string]any{"permissions": perms}
	}

	signedAccess, err := i.codec.Sign(ctx, claims, alg)
	if err != nil {
		// A missing signing key is a deployment problem, not a client one.
		log.Error().Err(err).Str("alg", alg).Msg("failed to sign access token")
		return nil, serrors.NewServerError("token signing unavailable")
	}

	accessValue := signedAccess
	if opts.Client.EncryptionAlg != "" {
		encrypted, encErr := i.codec.Encrypt(ctx, []byte(signedAccess), opts.Client.EncryptionAlg)
		if encErr != nil {
			log.Error().Err(encErr).Str("alg", opts.Client.EncryptionAlg).Msg("failed to encrypt access token")
			return nil, serrors.NewServerError("token encryption unavailable")
		}
		accessValue = encrypted
	}

	var idToken string
	if opts.IncludeIDToken && opts.Subject != "" {
		idToken, err = i.buildIDToken(ctx, opts, alg, now, expiresAt, signedAccess)
		if err != nil {
			return nil, err
		}
	}

	var refreshValue string
	if opts.IncludeRefreshToken {
		refreshValue, err = generateRandomString(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate refresh token: %w", err)
		}
	}

	// Nothing has been persisted yet; honor cancellation before any token
	// becomes visible.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request canceled before persistence: %w", err)
	}

	accessToken := &domain.Token{
		ID:         tokenID,
		TokenType:  tokenType,
		TokenValue: accessValue,
		ClientID:   opts.Client.ID,
		UserID:     opts.Subject,
		Scope:      opts.Scope,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastUsedAt: now,
		Issuer:     i.cfg.Issuer,
		AMR:        opts.AMR,
	}
	if err := i.tokens.StoreToken(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	if refreshValue != "" {
		refreshToken := &domain.Token{
			ID:         uuid.NewString(),
			TokenType:  api.TokenTypeRefreshToken,
			TokenValue: refreshValue,
			ClientID:   opts.Client.ID,
			UserID:     opts.Subject,
			Scope:      opts.Scope,
			ExpiresAt:  now.Add(i.cfg.RefreshTokenTTL),
			CreatedAt:  now,
			LastUsedAt: now,
			Issuer:     i.cfg.Issuer,
			AMR:        opts.AMR,
		}
		if err := i.tokens.StoreToken(ctx, refreshToken); err != nil {
			return nil, fmt.Errorf("failed to store refresh token: %w", err)
		}
	}

	i.events.Publish(ctx, audit.Event{
		Action:    audit.ActionTokenIssued,
		ClientID:  opts.Client.ID,
		Subject:   opts.Subject,
		GrantType: opts.GrantType,
		Scope:     opts.Scope,
		TokenID:   tokenID,
		Success:   true,
	})
	metrics.TokensIssuedTotal.WithLabelValues(opts.GrantType).Inc()

	return &api.TokenResponse{
		IDToken:      idToken,
		AccessToken:  accessValue,
		TokenType:    "Bearer",
		ExpiresIn:    int(lifetime.Seconds()),
		RefreshToken: refreshValue,
		Scope:        opts.Scope,
	}, nil
}

func (i *TokenIssuer) buildIDToken(ctx context.Context, opts IssueOptions, alg string, now, expiresAt time.Time, signedAccess string) (string, error) {
	atHash, err := signing.TokenHash(alg, signedAccess)
	if err != nil {
		return "", serrors.NewServerError("cannot compute at_hash")
	}

	idClaims := jwt.MapClaims{
		"iss":     i.cfg.Issuer,
		"sub":     opts.Subject,
		"aud":     jwt.ClaimStrings{opts.Client.ID},
		"exp":     jwt.NewNumericDate(expiresAt).Unix(),
		"iat":     jwt.NewNumericDate(now).Unix(),
		"at_hash": atHash,
	}
	if len(opts.AMR) > 0 {
		idClaims["amr"] = opts.AMR
	}
	if opts.AuthorizationCode != "" {
		cHash, hashErr := signing.TokenHash(alg, opts.AuthorizationCode)
		if hashErr != nil {
			return "", serrors.NewServerError("cannot compute c_hash")
		}
		idClaims["c_hash"] = cHash
	}
	for name, value := range filterClaims(opts.Claims, opts.Client.ClaimPatterns) {
		if _, reserved := idClaims[name]; !reserved {
			idClaims[name] = value
		}
	}

	idToken, err := i.codec.Sign(ctx, idClaims, alg)
	if err != nil {
		log.Error().Err(err).Str("alg", alg).Msg("failed to sign id token")
		return "", serrors.NewServerError("token signing unavailable")
	}
	return idToken, nil
}

// RevokeToken tombstones a token and audits the revocation.
func (i *TokenIssuer) RevokeToken(ctx context.Context, tokenValue string) error {
	if err := i.tokens.RevokeToken(ctx, tokenValue); err != nil {
		return err
	}
	i.events.Publish(ctx, audit.Event{
		Action:  audit.ActionTokenRevoked,
		Success: true,
	})
	return nil
}

// filterClaims keeps the claims whose name matches at least one allow-list
// pattern. No patterns means no resource-owner claims are copied.
func filterClaims(claims map[string]string, patterns []string) map[string]string {
	if len(claims) == 0 || len(patterns) == 0 {
		return nil
	}
	out := make(map[string]string)
	for name, value := range claims {
		for _, pattern := range patterns {
			if ok, err := path.Match(pattern, name); err == nil && ok {
				out[name] = value
				break
			}
		}
	}
	return out
}
