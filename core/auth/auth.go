// Package auth defines the credential verification contract the session layer
// depends on, plus a static in-memory implementation for wiring and tests.
// Credential issuance and rotation are out of scope: callers bring their own
// Authenticator when tokens live elsewhere.
package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidCredential is returned by Verify for unknown or revoked credentials.
var ErrInvalidCredential = errors.New("auth: invalid credential")

// Identity is the authenticated principal attached to a connection. ID is the
// quota-bearing key in the usage ledger.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

// Authenticator verifies an opaque credential and resolves the identity
// behind it.
type Authenticator interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// StaticAuthenticator resolves credentials from a fixed in-memory table. Safe
// for concurrent use.
type StaticAuthenticator struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

// NewStaticAuthenticator creates an authenticator over a copy of the given
// credential→identity table.
func NewStaticAuthenticator(tokens map[string]Identity) *StaticAuthenticator {
	copied := make(map[string]Identity, len(tokens))
	for credential, identity := range tokens {
		copied[credential] = identity
	}

	return &StaticAuthenticator{tokens: copied}
}

// Verify resolves the credential or fails with ErrInvalidCredential. The empty
// credential is always invalid.
func (a *StaticAuthenticator) Verify(_ context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrInvalidCredential
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	identity, ok := a.tokens[credential]
	if !ok {
		return Identity{}, ErrInvalidCredential
	}

	return identity, nil
}

// Add registers or replaces a credential at runtime.
func (a *StaticAuthenticator) Add(credential string, identity Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokens[credential] = identity
}

// Revoke removes a credential; subsequent Verify calls fail.
func (a *StaticAuthenticator) Revoke(credential string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.tokens, credential)
}
