package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/topup-store/internal/domain/auth"
)

type mockAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return info, nil
}

func hashKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAPIKeyAuth(t *testing.T) {
	pepper := []byte("test-pepper")
	repo := &mockAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		hashKey("valid-key", pepper): {
			ID:      "k1",
			KeyHash: hashKey("valid-key", pepper),
			UserID:  "u1",
			Name:    "test key",
			Role:    auth.RoleUser,
		},
	}}

	var gotIdentity auth.Identity
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = auth.IdentityFromContext(r.Context())
		called = true
		w.WriteHeader(http.StatusOK)
	})
	protected := APIKeyAuth(repo, pepper)(next)

	t.Run("valid key attaches identity", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("api_key", "valid-key")
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, called)
		assert.Equal(t, "u1", gotIdentity.UserID)
		assert.Equal(t, auth.RoleUser, gotIdentity.Role)
	})

	t.Run("missing header", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("unknown key", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("api_key", "wrong-key")
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("different pepper invalidates keys", func(t *testing.T) {
		called = false
		other := APIKeyAuth(repo, []byte("other-pepper"))(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("api_key", "valid-key")
		rec := httptest.NewRecorder()

		other.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := RequireAdmin(next)

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := auth.WithIdentity(req.Context(), auth.Identity{UserID: "a1", Role: auth.RoleAdmin})
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req.WithContext(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1", Role: auth.RoleUser})
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req.WithContext(ctx))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no identity unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
