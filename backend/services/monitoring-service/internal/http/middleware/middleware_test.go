package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/auth"
)

type stubValidator map[string]int64

func (s stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	id, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{UserID: id, Username: "demo"}, nil
}

func TestAuthMiddleware(t *testing.T) {
	var seen int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AuthMiddleware(stubValidator{"good": 7})(next)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "bearer good", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, int64(7), seen)
}

func TestAuthMiddlewareWithRealTokens(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Minute)
	token, _, err := tokens.GenerateToken(42, "demo", "user")
	require.NoError(t, err)

	var seen int64
	handler := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, int64(42), seen)
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Minute)
	adminToken, _, err := tokens.GenerateToken(1, "admin", "admin")
	require.NoError(t, err)
	userToken, _, err := tokens.GenerateToken(2, "demo", "user")
	require.NoError(t, err)

	var role string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AuthMiddleware(tokens)(RequireRole("admin")(inner))

	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(adminToken))
	assert.Equal(t, "admin", role)
	assert.Equal(t, http.StatusForbidden, serve(userToken))
	assert.Equal(t, http.StatusUnauthorized, serve(""))

	rec := httptest.NewRecorder()
	RequireRole("admin")(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithRole(context.Background(), "user")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestIDKeepsOrAssigns(t *testing.T) {
	var seen string
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}), RequestID, Logging(zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestUserIDFromEmptyContext(t *testing.T) {
	_, ok := UserIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
	id, ok := UserIDFromContext(WithUserID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), 3))
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
}
