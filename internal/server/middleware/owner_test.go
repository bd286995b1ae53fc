package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := GetOwnerID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(ownerID))
	})
}

func TestRequireOwner_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/batches/1", nil)
	req.Header.Set(OwnerHeader, "  user-42 ")
	w := httptest.NewRecorder()

	RequireOwner(ownerEcho()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", w.Body.String())
}

func TestRequireOwner_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"missing", ""},
		{"blank", "   "},
		{"too long", strings.Repeat("a", maxOwnerIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/batches", nil)
			if tt.value != "" {
				req.Header.Set(OwnerHeader, tt.value)
			}
			w := httptest.NewRecorder()

			RequireOwner(ownerEcho()).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), OwnerHeader)
		})
	}
}

func TestGetOwnerID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetOwnerID(req)
	require.Error(t, err)
}

func TestWithOwnerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithOwnerID(req.Context(), "user-1"))
	ownerID, err := GetOwnerID(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ownerID)
}
