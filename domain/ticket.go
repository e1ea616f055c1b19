package domain

import "time"

// TicketLine is one pending (resource set, scopes) permission request inside
// a UMA ticket.
type TicketLine struct {
	ResourceSetID string   `json:"resource_set_id"`
	Scopes        []string `json:"scopes"`
}

// Ticket is a UMA permission ticket: one or more requested permission lines
// awaiting adjudication. A ticket is redeemable exactly once.
type Ticket struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`     // Resource owner subject
	RequesterID string       `json:"requester_id"` // Requesting party subject, if known
	Lines       []TicketLine `json:"lines"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Consumed    bool         `json:"consumed"`
	ConsumedAt  time.Time    `json:"consumed_at,omitempty"`

	// OwnerApproved is set when the resource owner explicitly approved the
	// ticket; consent-requiring rules accept it in place of a stored
	// consent record.
	OwnerApproved bool `json:"owner_approved,omitempty"`
}

// Expired reports whether the ticket is past its expiry.
func (t *Ticket) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RequestedScopes returns the union of all scopes across the ticket lines.
func (t *Ticket) RequestedScopes() []string {
	seen := make(map[string]struct{})
	var scopes []string
	for _, line := range t.Lines {
		for _, s := range line.Scopes {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				scopes = append(scopes, s)
			}
		}
	}
	return scopes
}
