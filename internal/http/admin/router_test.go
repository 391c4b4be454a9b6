package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustcore/internal/authz"
	"github.com/dropDatabas3/trustcore/internal/http/admin"
	"github.com/dropDatabas3/trustcore/internal/revocation"
	"github.com/dropDatabas3/trustcore/internal/secrets"
	"github.com/dropDatabas3/trustcore/internal/security/secretbox"
	"github.com/dropDatabas3/trustcore/internal/token"
)

const apiKey = "test-admin-key"

type env struct {
	srv *httptest.Server
	svc *token.Service
	rev *revocation.MemoryStore
	mgr *secrets.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 50)
	}
	require.NoError(t, secretbox.UnsafeSetMasterKeyForTests(key))

	mgr, err := secrets.NewManager(secrets.NewMemStore(), []secrets.Spec{
		{Name: "jwt-signing-key", Kind: secrets.KindSigningKey, Alg: "HS256"},
	})
	require.NoError(t, err)
	require.NoError(t, mgr.EnsureBootstrap(context.Background()))

	resolver, err := authz.NewResolver(authz.DefaultRoleTable())
	require.NoError(t, err)

	rev := revocation.NewMemoryStore()
	svc := token.NewService(token.Config{
		Issuer:   "https://trust.example.com",
		Audience: "example-app",
	}, resolver, mgr, rev)

	handler := admin.NewRouter(&admin.Handlers{
		Revocations: rev,
		Secrets:     mgr,
		Tokens:      svc,
		RefreshTTL:  time.Hour,
	}, admin.RouterConfig{APIKey: apiKey})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &env{srv: srv, svc: svc, rev: rev, mgr: mgr}
}

func (e *env) request(t *testing.T, method, path, key string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-Admin-API-Key", key)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAdmin_RequiresAPIKey(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.request(t, "POST", "/v1/admin/revocations", "", map[string]any{"reason": "logout"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.request(t, "POST", "/v1/admin/revocations", "wrong-key", map[string]any{"reason": "logout"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// /healthz queda fuera del requisito de key
	resp, body := e.request(t, "GET", "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestAdmin_RevokeByToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pair, err := e.svc.IssuePair(ctx, token.Identity{
		Subject: "user-1", Email: "ana@example.com",
		FirstName: "Ana", LastName: "García", Roles: []string{"Member"},
	})
	require.NoError(t, err)

	resp, body := e.request(t, "POST", "/v1/admin/revocations", apiKey, map[string]any{
		"token":  pair.AccessToken,
		"reason": "admin_action",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user-1", body["user_id"])

	_, err = e.svc.Validate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestAdmin_RevokeByJTIAndList(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.request(t, "POST", "/v1/admin/revocations", apiKey, map[string]any{
		"jti": "jti-123", "user_id": "user-7", "reason": "suspicious_activity", "ttl_seconds": 600,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.request(t, "GET", "/v1/admin/users/user-7/revocations", apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	recs, ok := body["revocations"].([]any)
	require.True(t, ok, "revocations list missing: %v", body)
	require.Len(t, recs, 1)
	rec := recs[0].(map[string]any)
	require.Equal(t, "jti-123", rec["jti"])
	require.Equal(t, "suspicious_activity", rec["reason"])
}

func TestAdmin_RevokeAll(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.request(t, "POST", "/v1/admin/revocations", apiKey, map[string]any{
		"all": true, "user_id": "user-9", "reason": "security_incident",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.request(t, "GET", "/v1/admin/users/user-9/revocations", apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["revoked_all_at"])
}

func TestAdmin_RevocationValidation(t *testing.T) {
	e := newEnv(t)

	// motivo inventado
	resp, _ := e.request(t, "POST", "/v1/admin/revocations", apiKey, map[string]any{
		"jti": "x", "user_id": "u", "reason": "because",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// sin target
	resp, _ = e.request(t, "POST", "/v1/admin/revocations", apiKey, map[string]any{
		"reason": "logout",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// token ilegible
	resp, _ = e.request(t, "POST", "/v1/admin/revocations", apiKey, map[string]any{
		"token": "not.a.jwt", "reason": "logout",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_SecretRotateAndHistory(t *testing.T) {
	e := newEnv(t)

	resp, body := e.request(t, "POST", "/v1/admin/secrets/jwt-signing-key/rotate", apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "jwt-signing-key", body["rotated"])

	resp, body = e.request(t, "GET", "/v1/admin/secrets/jwt-signing-key/history", apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	versions, ok := body["versions"].([]any)
	require.True(t, ok)
	require.Len(t, versions, 2) // bootstrap + rotación

	// nunca viaja el valor: sólo metadata
	first := versions[0].(map[string]any)
	_, hasValue := first["value"]
	require.False(t, hasValue)
	require.Equal(t, true, first["active"])
}

func TestAdmin_SetSecretEnforcesStrength(t *testing.T) {
	e := newEnv(t)

	resp, body := e.request(t, "PUT", "/v1/admin/secrets/jwt-signing-key", apiKey, map[string]any{
		"value": "weak",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "weak_value", body["error"])

	strong := strings.Repeat("k9Fq", 10)
	resp, _ = e.request(t, "PUT", "/v1/admin/secrets/jwt-signing-key", apiKey, map[string]any{
		"value": strong,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := e.mgr.GetSecret(context.Background(), "jwt-signing-key")
	require.NoError(t, err)
	require.Equal(t, strong, got)
}

func TestAdmin_UnknownSecret(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.request(t, "POST", "/v1/admin/secrets/unknown/rotate", apiKey, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.request(t, "GET", "/v1/admin/secrets/unknown/history", apiKey, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
