package errors

import "fmt"

// OAuth2Error represents a standardized OAuth 2.0 error
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`

	// MissingClaims carries the claim types a UMA policy required but did
	// not find, so the requesting party can attempt claims gathering.
	MissingClaims []string `json:"missing_claims,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Retryable reports whether the error is a non-terminal device-flow result:
// the client should keep polling rather than give up.
func (e *OAuth2Error) Retryable() bool {
	return e.Code == AuthorizationPending || e.Code == SlowDown
}

// Standard OAuth2 error codes
const (
	InvalidRequest         = "invalid_request"
	UnauthorizedClient     = "unauthorized_client"
	AccessDenied           = "access_denied"
	UnsupportedGrantType   = "unsupported_grant_type"
	InvalidScope           = "invalid_scope"
	InvalidClient          = "invalid_client"
	InvalidGrant           = "invalid_grant"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"

	// Device flow codes (RFC 8628)
	AuthorizationPending = "authorization_pending"
	SlowDown             = "slow_down"
	ExpiredToken         = "expired_token"
)

// Non-terminal device-flow results. These are shared values rather than
// constructors so a polling client can distinguish them by identity.
var (
	ErrAuthorizationPending = &OAuth2Error{
		Code:        AuthorizationPending,
		Description: "The authorization request is still pending",
	}
	ErrSlowDown = &OAuth2Error{
		Code:        SlowDown,
		Description: "Polling too frequently, slow down",
	}
	ErrDeviceFlowTokenExpired = &OAuth2Error{
		Code:        ExpiredToken,
		Description: "The device_code has expired",
	}
	ErrDeviceFlowAccessDenied = &OAuth2Error{
		Code:        AccessDenied,
		Description: "The end user denied the authorization request",
	}
)

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidClient,
		Description: description,
	}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: description,
	}
}

func NewAccessDenied(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        AccessDenied,
		Description: description,
	}
}

// NewAccessDeniedWithClaims builds an access_denied error that names the
// claim types whose absence caused the policy failure.
func NewAccessDeniedWithClaims(description string, missing []string) *OAuth2Error {
	return &OAuth2Error{
		Code:          AccessDenied,
		Description:   description,
		MissingClaims: missing,
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}

// PKCE specific errors
func NewPKCERequired() *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: "PKCE is required for this client",
	}
}

func NewInvalidPKCE(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: fmt.Sprintf("PKCE validation failed: %s", description),
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidScope,
		Description: description,
	}
}

func NewUnauthorizedClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnauthorizedClient,
		Description: description,
	}
}

func NewUnsupportedGrantType(grantType string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: fmt.Sprintf("The authorization grant type %q is not supported", grantType),
	}
}
