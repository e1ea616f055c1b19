package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Action names used by the token engine.
const (
	ActionTokenIssued     = "token.issued"
	ActionTokenFailed     = "token.failed"
	ActionTokenRevoked    = "token.revoked"
	ActionTicketCreated   = "ticket.created"
	ActionTicketApproved  = "ticket.approved"
	ActionDeviceAuthStart = "device_auth.started"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	ClientID  string    `json:"client_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	GrantType string    `json:"grant_type,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	TokenID   string    `json:"token_id,omitempty"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Publisher records audit events. Publishing is best-effort: failures are
// logged and never fail the operation being audited.
//
//go:generate mockgen -source=$GOFILE -destination=../../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// ZerologPublisher writes audit events as structured log entries.
type ZerologPublisher struct {
	logger zerolog.Logger
}

// NewZerologPublisher creates a publisher over the given logger.
func NewZerologPublisher(logger zerolog.Logger) *ZerologPublisher {
	return &ZerologPublisher{logger: logger}
}

// NewDefaultPublisher creates a publisher over the global zerolog logger.
func NewDefaultPublisher() *ZerologPublisher {
	return &ZerologPublisher{logger: log.Logger}
}

// Publish implements Publisher.
func (p *ZerologPublisher) Publish(_ context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	entry := p.logger.Info()
	if !event.Success {
		entry = p.logger.Warn()
	}
	entry.
		Str("action", event.Action).
		Str("client_id", event.ClientID).
		Str("subject", event.Subject).
		Str("grant_type", event.GrantType).
		Str("scope", event.Scope).
		Str("token_id", event.TokenID).
		Str("ticket_id", event.TicketID).
		Bool("success", event.Success).
		Str("error", event.Error).
		Time("timestamp", event.Timestamp).
		Msg("audit event")
}
