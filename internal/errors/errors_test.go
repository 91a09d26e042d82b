// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"strings"
	"testing"
)

// TestErrorCodeValues verifies all error codes have non-empty values.
func TestErrorCodeValues(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
	}{
		{"internal", ErrInternal},
		{"invalid", ErrInvalid},
		{"not found", ErrNotFound},
		{"duplicate", ErrDuplicate},
		{"permission", ErrPermission},
		{"persistence", ErrPersistence},
		{"constraint", ErrConstraint},
		{"auth failed", ErrAuthFailed},
		{"token invalid", ErrTokenInvalid},
		{"link expired", ErrLinkExpired},
		{"link revoked", ErrLinkRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code == "" {
				t.Errorf("Error code %s has empty value", tt.name)
			}
		})
	}
}

// TestAppErrorError verifies the error message format.
func TestAppErrorError(t *testing.T) {
	appErr := New(ErrNotFound, "document missing")
	msg := appErr.Error()
	if !strings.Contains(msg, string(ErrNotFound)) {
		t.Errorf("Error() = %q, want code %q included", msg, ErrNotFound)
	}
	if !strings.Contains(msg, "document missing") {
		t.Errorf("Error() = %q, want message included", msg)
	}
}

// TestAppErrorWrap verifies wrapping preserves the underlying error.
func TestAppErrorWrap(t *testing.T) {
	inner := errors.New("disk full")
	appErr := Wrap(ErrPersistence, "failed to apply change", inner)

	if !strings.Contains(appErr.Error(), "disk full") {
		t.Errorf("Error() = %q, want underlying error included", appErr.Error())
	}
	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match the wrapped error")
	}
	if appErr.Unwrap() != inner {
		t.Error("Unwrap() should return the wrapped error")
	}
}

// TestIs verifies code matching.
func TestIs(t *testing.T) {
	appErr := New(ErrPermission, "no edit rights")

	if !Is(appErr, ErrPermission) {
		t.Error("Is() should match the error's own code")
	}
	if Is(appErr, ErrNotFound) {
		t.Error("Is() should not match a different code")
	}
	if Is(errors.New("plain"), ErrPermission) {
		t.Error("Is() should not match a non-AppError")
	}
}
