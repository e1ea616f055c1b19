package domain

import "context"

// ResourceOwner is the authenticated subject behind a password grant.
type ResourceOwner struct {
	ID     string            `json:"id"`
	Login  string            `json:"login"`
	Claims map[string]string `json:"claims,omitempty"` // Raw claims (email, name, ...) before filtering
	AMR    []string          `json:"amr,omitempty"`    // How the owner authenticated
}

// ResourceOwnerAuthenticator validates resource-owner credentials. The
// password grant walks an ordered list of these until one succeeds;
// a nil owner with a nil error means "not my user, try the next one".
type ResourceOwnerAuthenticator interface {
	Authenticate(ctx context.Context, login, password string) (*ResourceOwner, error)
}
