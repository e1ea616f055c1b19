package domain

import "time"

// Consent records a resource owner's approval of scopes on a resource set
// for a specific requesting party.
type Consent struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	RequesterID   string    `json:"requester_id"`
	ResourceSetID string    `json:"resource_set_id"`
	Scopes        []string  `json:"scopes"`
	GrantedAt     time.Time `json:"granted_at"`
}

// Covers reports whether the consent grants all of the requested scopes on
// the given resource set.
func (c *Consent) Covers(resourceSetID string, scopes []string) bool {
	if c.ResourceSetID != resourceSetID {
		return false
	}
	granted := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		granted[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}
