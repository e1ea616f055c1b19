package domain

import (
	"context"
	"errors"
)

// Sentinel errors shared by every repository implementation.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyConsumed = errors.New("already consumed")
	ErrInvalidStatus   = errors.New("invalid status transition")
	ErrExpired         = errors.New("already expired")
)

//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE

// TokenRepository persists issued tokens, keyed by the hash of their value.
// RevokeToken is a conditional write: revoking an already revoked token
// reports ErrAlreadyConsumed, which is what makes refresh rotation
// single-use under concurrency.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, tokenValue string) (*Token, error)
	RevokeToken(ctx context.Context, tokenValue string) error
	GetTokenInfo(ctx context.Context, tokenValue string) (*TokenInfo, error)
}

// AuthCodeRepository stores single-use authorization codes. ConsumeAuthCode
// is an atomic check-and-delete: of two concurrent calls for the same code,
// exactly one receives the code and the other ErrAlreadyConsumed.
type AuthCodeRepository interface {
	SaveAuthCode(ctx context.Context, code *AuthCode) error
	GetAuthCode(ctx context.Context, code string) (*AuthCode, error)
	ConsumeAuthCode(ctx context.Context, code string) (*AuthCode, error)
}

// DeviceAuthRepository stores device authorization grants. UpdateStatus is
// conditional: it transitions from exactly the given status and returns
// ErrInvalidStatus when the record is no longer in it, which keeps a
// device_code redeemable at most once under concurrent polling.
type DeviceAuthRepository interface {
	SaveDeviceAuth(ctx context.Context, auth *DeviceCode) error
	GetDeviceAuthByDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)
	GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)
	UpdateDeviceAuthStatus(ctx context.Context, deviceCode string, from, to DeviceCodeStatus) error
	// ApproveDeviceAuth transitions pending -> authorized and binds the
	// approving user in the same atomic step.
	ApproveDeviceAuth(ctx context.Context, deviceCode, userID string) error
	UpdateDeviceAuthLastPolledAt(ctx context.Context, deviceCode string) error
	RemoveDeviceAuth(ctx context.Context, deviceCode string) error
}

// TicketRepository stores UMA permission tickets. MarkConsumed is
// conditional on the ticket not yet being consumed.
type TicketRepository interface {
	SaveTicket(ctx context.Context, ticket *Ticket) error
	GetTicket(ctx context.Context, ticketID string) (*Ticket, error)
	ApproveAccess(ctx context.Context, ticketID string) error
	MarkConsumed(ctx context.Context, ticketID string) error
}

// ResourceSetRepository resolves UMA protected resources.
type ResourceSetRepository interface {
	GetResourceSet(ctx context.Context, id string) (*ResourceSet, error)
	GetOwner(ctx context.Context, id string) (string, error)
}

// ConsentRepository resolves consent records granted by a resource owner to
// a requesting party.
type ConsentRepository interface {
	GetConsentsForUser(ctx context.Context, ownerID, requesterID string) ([]*Consent, error)
}
