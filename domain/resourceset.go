package domain

// PolicyClaim is a required claim inside a policy rule, matched against
// presented claims by both type and value.
type PolicyClaim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// PolicyRule is one authorization rule attached to a resource set. A
// requested ticket line satisfies the rule when the client is allowed,
// every required claim is presented, the rule covers the requested scopes
// and, when required, the resource owner has consented.
type PolicyRule struct {
	ID               string        `json:"id"`
	Claims           []PolicyClaim `json:"claims,omitempty"`
	ClientIDsAllowed []string      `json:"client_ids_allowed,omitempty"` // Empty means any client
	Scopes           []string      `json:"scopes"`
	ConsentRequired  bool          `json:"consent_required"`
}

// ResourceSet is a UMA protected resource: an owner, the scopes it exposes
// and the ordered policy rules guarding it.
type ResourceSet struct {
	ID      string       `json:"id"`
	OwnerID string       `json:"owner_id"`
	Name    string       `json:"name,omitempty"`
	Scopes  []string     `json:"scopes"`
	Rules   []PolicyRule `json:"rules,omitempty"`
}
