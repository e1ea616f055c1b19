package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/shadow-uma/api"
	"github.com/pilab-dev/shadow-uma/client"
	"github.com/pilab-dev/shadow-uma/config"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/audit"
)

// Constants for the device flow (RFC 8628).
const (
	deviceCodeLength  = 32                                // Length of the device_code in bytes
	userCodeLength    = 8                                 // Length of the user_code before grouping
	userCodeCharset   = "BCDFGHJKLMNPQRSTVWXYZ0123456789" // Base32-like, avoiding ambiguous chars
	userCodeChunkSize = 4
)

// DeviceAuthorizationService issues and tracks device_code/user_code pairs.
// The server never blocks awaiting approval; devices poll the token
// endpoint at the advertised interval.
type DeviceAuthorizationService struct {
	cfg     *config.EngineConfig
	repo    domain.DeviceAuthRepository
	clients client.ClientStore
	events  audit.Publisher
}

// NewDeviceAuthorizationService creates a new DeviceAuthorizationService.
func NewDeviceAuthorizationService(cfg *config.EngineConfig, repo domain.DeviceAuthRepository, clients client.ClientStore, events audit.Publisher) *DeviceAuthorizationService {
	return &DeviceAuthorizationService{
		cfg:     cfg,
		repo:    repo,
		clients: clients,
		events:  events,
	}
}

// Start handles a device authorization request: it validates the client and
// scope, generates the code pair and stores it with the configured TTL.
func (s *DeviceAuthorizationService) Start(ctx context.Context, clientID, scope string) (*api.DeviceAuthResponse, error) {
	cli, err := s.clients.GetClient(ctx, clientID)
	if err != nil || cli == nil {
		return nil, serrors.NewInvalidClient("client not found or invalid")
	}
	if !cli.HasGrantType(api.GrantTypeDeviceCode) {
		return nil, serrors.NewUnauthorizedClient("client not allowed to use the device flow")
	}
	if err := validateScope(scope, cli); err != nil {
		return nil, err
	}

	deviceCodeVal, err := generateRandomString(deviceCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device_code: %w", err)
	}
	userCodeVal, err := generateUserCode(userCodeLength, userCodeCharset, userCodeChunkSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user_code: %w", err)
	}

	now := time.Now().UTC()
	interval := int(s.cfg.DevicePollInterval.Seconds())
	deviceAuth := &domain.DeviceCode{
		ID:         uuid.NewString(),
		DeviceCode: deviceCodeVal,
		UserCode:   userCodeVal,
		ClientID:   clientID,
		Scope:      scope,
		Status:     domain.DeviceCodeStatusPending,
		ExpiresAt:  now.Add(s.cfg.DeviceCodeTTL),
		Interval:   interval,
		CreatedAt:  now,
	}

	if err := s.repo.SaveDeviceAuth(ctx, deviceAuth); err != nil {
		return nil, fmt.Errorf("failed to save device authorization request: %w", err)
	}

	s.events.Publish(ctx, audit.Event{
		Action:    audit.ActionDeviceAuthStart,
		ClientID:  clientID,
		GrantType: api.GrantTypeDeviceCode,
		Scope:     scope,
		Success:   true,
	})

	verificationURI := fmt.Sprintf("%s/device", s.cfg.DeviceVerificationBaseURI)
	return &api.DeviceAuthResponse{
		DeviceCode:              deviceCodeVal,
		UserCode:                userCodeVal,
		VerificationURI:         verificationURI,
		VerificationURIComplete: fmt.Sprintf("%s?user_code=%s", verificationURI, userCodeVal),
		ExpiresIn:               int(s.cfg.DeviceCodeTTL.Seconds()),
		Interval:                interval,
	}, nil
}

// Approve records the end user's approval of the device identified by the
// user_code, binding it to the approving user.
func (s *DeviceAuthorizationService) Approve(ctx context.Context, userCode, userID string) error {
	deviceAuth, err := s.lookupPending(ctx, userCode)
	if err != nil {
		return err
	}
	if err := s.repo.ApproveDeviceAuth(ctx, deviceAuth.DeviceCode, userID); err != nil {
		return decisionError(err)
	}
	log.Info().Str("user_code", userCode).Str("status", string(domain.DeviceCodeStatusAuthorized)).
		Msg("device authorization decided")
	return nil
}

// Deny records the end user's refusal of the device identified by the
// user_code.
func (s *DeviceAuthorizationService) Deny(ctx context.Context, userCode string) error {
	deviceAuth, err := s.lookupPending(ctx, userCode)
	if err != nil {
		return err
	}
	// The status may only ever leave pending once.
	if err := s.repo.UpdateDeviceAuthStatus(ctx, deviceAuth.DeviceCode, domain.DeviceCodeStatusPending, domain.DeviceCodeStatusDenied); err != nil {
		return decisionError(err)
	}
	log.Info().Str("user_code", userCode).Str("status", string(domain.DeviceCodeStatusDenied)).
		Msg("device authorization decided")
	return nil
}

func (s *DeviceAuthorizationService) lookupPending(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	deviceAuth, err := s.repo.GetDeviceAuthByUserCode(ctx, userCode)
	if err != nil {
		return nil, serrors.NewInvalidGrant("unknown user code")
	}
	if deviceAuth.Expired(time.Now().UTC()) {
		return nil, serrors.ErrDeviceFlowTokenExpired
	}
	return deviceAuth, nil
}

func decisionError(err error) error {
	if errors.Is(err, domain.ErrInvalidStatus) {
		return serrors.NewInvalidGrant("device authorization already decided")
	}
	return fmt.Errorf("failed to update device authorization: %w", err)
}

// validateScope checks every requested scope against the client allow-list.
func validateScope(requestedScope string, cli *client.Client) error {
	for _, scope := range splitScope(requestedScope) {
		if !cli.HasScope(scope) {
			return serrors.NewInvalidScope(fmt.Sprintf("scope %q not allowed for client", scope))
		}
	}
	return nil
}
