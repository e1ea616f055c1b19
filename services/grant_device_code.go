package services

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/metrics"
)

// DeviceCodeGrant serves the polling side of the device flow. Pending and
// slow_down outcomes are retryable; every other failure is terminal and
// the device record is removed.
type DeviceCodeGrant struct {
	devices domain.DeviceAuthRepository
	issuer  *TokenIssuer
}

// NewDeviceCodeGrant creates the device_code grant handler.
func NewDeviceCodeGrant(devices domain.DeviceAuthRepository, issuer *TokenIssuer) *DeviceCodeGrant {
	return &DeviceCodeGrant{
		devices: devices,
		issuer:  issuer,
	}
}

// Execute implements GrantHandler.
func (g *DeviceCodeGrant) Execute(ctx context.Context, req *TokenRequest, cli *client.Client, _ *x509.Certificate) (*api.TokenResponse, error) {
	if req.DeviceCode == "" {
		return nil, serrors.NewInvalidRequest("missing device_code")
	}
	metrics.DevicePollsTotal.Inc()

	auth, err := g.devices.GetDeviceAuthByDeviceCode(ctx, req.DeviceCode)
	if err != nil {
		return nil, serrors.NewInvalidGrant("unknown device_code")
	}
	if auth.ClientID != cli.ID {
		return nil, serrors.NewInvalidGrant("device_code was issued to another client")
	}

	now := time.Now().UTC()
	if auth.Expired(now) {
		g.remove(ctx, req.DeviceCode)
		return nil, serrors.ErrDeviceFlowTokenExpired
	}

	// Polling faster than the granted interval costs the device an extra
	// backoff round; the poll timestamp still advances.
	interval := time.Duration(auth.Interval) * time.Second
	tooFast := !auth.LastPolledAt.IsZero() && now.Sub(auth.LastPolledAt) < interval
	if err := g.devices.UpdateDeviceAuthLastPolledAt(ctx, req.DeviceCode); err != nil {
		log.Warn().Err(err).Msg("failed to record device poll time")
	}
	if tooFast {
		return nil, serrors.ErrSlowDown
	}

	switch auth.Status {
	case domain.DeviceCodeStatusPending:
		return nil, serrors.ErrAuthorizationPending

	case domain.DeviceCodeStatusDenied:
		g.remove(ctx, req.DeviceCode)
		return nil, serrors.ErrDeviceFlowAccessDenied

	case domain.DeviceCodeStatusAuthorized:
		// Claim the authorization; a concurrent poller that loses the
		// transition gets invalid_grant.
		if err := g.devices.UpdateDeviceAuthStatus(ctx, req.DeviceCode, domain.DeviceCodeStatusAuthorized, domain.DeviceCodeStatusRedeemed); err != nil {
			return nil, serrors.NewInvalidGrant("device_code already redeemed")
		}

		scopes := splitScope(auth.Scope)
		resp, err := g.issuer.IssueToken(ctx, IssueOptions{
			Client:              cli,
			GrantType:           api.GrantTypeDeviceCode,
			Subject:             auth.UserID,
			Scope:               auth.Scope,
			AMR:                 []string{"user_code"},
			IncludeRefreshToken: containsScope(scopes, "offline_access"),
			IncludeIDToken:      containsScope(scopes, "openid"),
		})
		if err != nil {
			return nil, err
		}
		g.remove(ctx, req.DeviceCode)
		return resp, nil

	default:
		return nil, serrors.NewInvalidGrant("device_code already redeemed")
	}
}

func (g *DeviceCodeGrant) remove(ctx context.Context, deviceCode string) {
	if err := g.devices.RemoveDeviceAuth(ctx, deviceCode); err != nil {
		log.Warn().Err(err).Msg("failed to remove device authorization record")
	}
}
