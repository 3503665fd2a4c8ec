package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quizzly-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService("secret", time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	token, err := svc.Issue("parent-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != "parent-1" {
		t.Fatalf("expected parent-1, got %s", id)
	}
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	svc, _ := NewTokenService("secret", time.Minute)
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.Issue("parent-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := svc.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	other, _ := NewTokenService("other-secret", time.Minute)
	svc.now = func() time.Time { return issuedAt }
	other.now = svc.now
	if _, err := other.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}
	if _, err := svc.Verify(""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected empty token to be rejected, got %v", err)
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService("", time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	digest, err := h.Hash("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Verify("hunter22", digest) {
		t.Fatalf("expected verify to succeed")
	}
	if h.Verify("hunter23", digest) {
		t.Fatalf("expected verify to fail for wrong secret")
	}
}
