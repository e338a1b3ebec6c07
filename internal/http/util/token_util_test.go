package util

import (
	"errors"
	"testing"
	"time"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Minute)

	token, err := signer.Issue("session")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := signer.Validate("session", token); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTokenSigner_WrongSubject(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Minute)

	token, err := signer.Issue("session")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := signer.Validate("7", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a foreign subject, got %v", err)
	}
}

func TestTokenSigner_WrongSecret(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Minute)
	other := NewTokenSigner([]byte("other-secret"), time.Minute)

	token, err := signer.Issue("session")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := other.Validate("session", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestTokenSigner_Expired(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), -time.Minute)

	token, err := signer.Issue("session")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := signer.Validate("session", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestTokenSigner_Garbage(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Minute)

	for _, token := range []string{"", "nodot", "a.b", "!!.!!"} {
		if err := signer.Validate("session", token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestTokenSigner_MissingSecret(t *testing.T) {
	signer := NewTokenSigner(nil, time.Minute)

	if _, err := signer.Issue("session"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if err := signer.Validate("session", "x.y"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
