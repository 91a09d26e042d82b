// Package handlers provides the REST API handlers for gridshare.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gridshare/gridshare/internal/auth"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/logging"
)

type contextKey string

const userContextKey contextKey = "user"

// RequireAuth wraps a handler with bearer-token authentication. The token
// is taken from the Authorization header, or from the "token" query
// parameter as a fallback (used by print views opened in a new window).
func RequireAuth(verifier *auth.Verifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else if q := r.URL.Query().Get("token"); q != "" {
			token = q
		}
		if token == "" {
			WriteError(w, apperrors.New(apperrors.ErrAuthFailed, "missing credentials"))
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// UserFrom returns the authenticated claims stored by RequireAuth.
func UserFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(userContextKey).(*auth.Claims)
	return claims
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("failed to encode response", err)
	}
}

// WriteError maps an application error to an HTTP status and writes it.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperrors.ErrInternal

	if appErr, ok := err.(*apperrors.AppError); ok {
		code = appErr.Code
		switch appErr.Code {
		case apperrors.ErrNotFound:
			status = http.StatusNotFound
		case apperrors.ErrPermission:
			status = http.StatusForbidden
		case apperrors.ErrInvalid:
			status = http.StatusBadRequest
		case apperrors.ErrAuthFailed, apperrors.ErrTokenInvalid:
			status = http.StatusUnauthorized
		case apperrors.ErrLinkExpired, apperrors.ErrLinkRevoked:
			status = http.StatusGone
		case apperrors.ErrDuplicate, apperrors.ErrConstraint:
			status = http.StatusConflict
		}
	}

	if status == http.StatusInternalServerError {
		logging.Error("request failed", err)
	}
	WriteJSON(w, status, map[string]string{"error": string(code)})
}
