// Package middleware provides HTTP middleware shared by the API handlers.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OwnerHeader carries the ID of the user a request acts for. Establishing
// that identity is left to whatever sits in front of the API.
const OwnerHeader = "X-Owner-ID"

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// ownerIDKey is the context key for storing the owner ID.
const ownerIDKey ContextKey = "ownerID"

// maxOwnerIDLength bounds header values accepted as owner IDs.
const maxOwnerIDLength = 128

// RequireOwner rejects requests without a usable X-Owner-ID header and adds
// the owner ID to the request context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if ownerID == "" || len(ownerID) > maxOwnerIDLength || strings.ContainsAny(ownerID, "\r\n") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": OwnerHeader + " header is required"})
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOwnerID extracts the owner ID from the request context.
func GetOwnerID(r *http.Request) (string, error) {
	ownerID, ok := r.Context().Value(ownerIDKey).(string)
	if !ok || ownerID == "" {
		return "", fmt.Errorf("owner ID not found in request context")
	}
	return ownerID, nil
}

// WithOwnerID returns ctx carrying ownerID, for tests.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}
