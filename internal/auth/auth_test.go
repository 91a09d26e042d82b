// Package auth provides unit tests for token and password handling.
package auth

import (
	"testing"

	apperrors "github.com/gridshare/gridshare/internal/errors"
)

// TestSignVerifyRoundtrip verifies a signed token carries its claims back.
func TestSignVerifyRoundtrip(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected non-empty token")
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Email != "a@example.com" {
		t.Errorf("Email = %q, want a@example.com", claims.Email)
	}
}

// TestVerifyRejectsWrongSecret verifies tokens from a different secret fail.
func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a").Sign("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	_, err = NewVerifier("secret-b").Verify(token)
	if err == nil {
		t.Fatal("Verify should reject a token signed with another secret")
	}
	if !apperrors.Is(err, apperrors.ErrTokenInvalid) {
		t.Errorf("Expected TOKEN_INVALID, got %v", err)
	}
}

// TestVerifyRejectsGarbage verifies malformed tokens fail.
func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier("test-secret")
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := v.Verify(token); err == nil {
			t.Errorf("Verify(%q) should fail", token)
		}
	}
}

// TestPasswordHashing verifies hash and compare behavior.
func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2" {
		t.Error("Hash should not equal the plaintext")
	}
	if !VerifyPassword("hunter2", hash) {
		t.Error("VerifyPassword should accept the original password")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("VerifyPassword should reject a wrong password")
	}
}
