package auth

import (
	"context"
	"errors"
	"testing"
)

// TestStaticAuthenticator_KnownCredential verifies a successful lookup.
func TestStaticAuthenticator_KnownCredential(t *testing.T) {
	a := NewStaticAuthenticator(map[string]Identity{
		"token-alice": {ID: "alice", Role: "user"},
	})

	identity, err := a.Verify(context.Background(), "token-alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if identity.ID != "alice" || identity.Role != "user" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

// TestStaticAuthenticator_UnknownCredential verifies the failure sentinel.
func TestStaticAuthenticator_UnknownCredential(t *testing.T) {
	a := NewStaticAuthenticator(nil)

	_, err := a.Verify(context.Background(), "nope")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

// TestStaticAuthenticator_EmptyCredential verifies that the empty string never
// authenticates, even if present in the table.
func TestStaticAuthenticator_EmptyCredential(t *testing.T) {
	a := NewStaticAuthenticator(map[string]Identity{"": {ID: "oops"}})

	_, err := a.Verify(context.Background(), "")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

// TestStaticAuthenticator_AddRevoke verifies runtime table mutation.
func TestStaticAuthenticator_AddRevoke(t *testing.T) {
	a := NewStaticAuthenticator(nil)

	a.Add("t1", Identity{ID: "bob"})

	if _, err := a.Verify(context.Background(), "t1"); err != nil {
		t.Fatalf("expected success after Add, got %v", err)
	}

	a.Revoke("t1")

	if _, err := a.Verify(context.Background(), "t1"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential after Revoke, got %v", err)
	}
}

// TestStaticAuthenticator_TableCopied verifies that mutating the source map
// after construction has no effect.
func TestStaticAuthenticator_TableCopied(t *testing.T) {
	source := map[string]Identity{"t1": {ID: "carol"}}
	a := NewStaticAuthenticator(source)

	delete(source, "t1")

	if _, err := a.Verify(context.Background(), "t1"); err != nil {
		t.Fatalf("expected internal copy to survive source mutation, got %v", err)
	}
}
