package services

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/pilab-dev/shadow-uma/domain"
)

// MemoryOwnerAuthenticator is a bcrypt-backed in-memory resource owner
// store, intended for tests and single-node deployments. Unknown logins
// return (nil, nil) so the next authenticator in the chain can try.
type MemoryOwnerAuthenticator struct {
	mu     sync.RWMutex
	owners map[string]*storedOwner
}

type storedOwner struct {
	owner *domain.ResourceOwner
	hash  []byte
}

// NewMemoryOwnerAuthenticator creates an empty authenticator.
func NewMemoryOwnerAuthenticator() *MemoryOwnerAuthenticator {
	return &MemoryOwnerAuthenticator{
		owners: make(map[string]*storedOwner),
	}
}

// AddOwner registers a resource owner under the given password.
func (m *MemoryOwnerAuthenticator) AddOwner(owner *domain.ResourceOwner, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[owner.Login] = &storedOwner{owner: owner, hash: hash}
	return nil
}

// Authenticate implements domain.ResourceOwnerAuthenticator.
func (m *MemoryOwnerAuthenticator) Authenticate(_ context.Context, login, password string) (*domain.ResourceOwner, error) {
	m.mu.RLock()
	stored, ok := m.owners[login]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword(stored.hash, []byte(password)); err != nil {
		return nil, bcrypt.ErrMismatchedHashAndPassword
	}
	return stored.owner, nil
}
