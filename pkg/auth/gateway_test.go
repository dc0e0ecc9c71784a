package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewchat/pkg/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func setupKeys(t *testing.T) {
	t.Helper()
	SetAPIKeys(config.APIKeysConfig{
		Backend:  []string{"bk-key"},
		Frontend: []string{"fe-key"},
		Admin:    []string{"adm-key"},
	})
	ConfigureRateLimit(1000, 1000)
	t.Cleanup(func() { SetAPIKeys(config.APIKeysConfig{}) })
}

func doReq(h http.Handler, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/thing", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRequireAPIKey(t *testing.T) {
	setupKeys(t)
	h := RequireAPIKey(RoleBackend)(okHandler())

	assert.Equal(t, http.StatusUnauthorized, doReq(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doReq(h, "bogus").Code)
	assert.Equal(t, http.StatusForbidden, doReq(h, "fe-key").Code, "frontend key on a backend route")
	assert.Equal(t, http.StatusOK, doReq(h, "bk-key").Code)
	assert.Equal(t, http.StatusOK, doReq(h, "adm-key").Code, "admin passes every gate")
}

func TestRequireAPIKeyRecordsRole(t *testing.T) {
	setupKeys(t)
	var got Role
	h := RequireAPIKey(RoleFrontend)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = RoleFrom(r.Context())
	}))
	doReq(h, "fe-key")
	assert.Equal(t, RoleFrontend, got)
}

func TestRequireAPIKeyRateLimits(t *testing.T) {
	setupKeys(t)
	ConfigureRateLimit(1, 2)
	h := RequireAPIKey(RoleBackend)(okHandler())

	assert.Equal(t, http.StatusOK, doReq(h, "bk-key").Code)
	assert.Equal(t, http.StatusOK, doReq(h, "bk-key").Code)
	assert.Equal(t, http.StatusTooManyRequests, doReq(h, "bk-key").Code)
}

func TestRequireIdentity(t *testing.T) {
	config.SetRuntime(&config.RuntimeConfig{SigningKeys: map[string]struct{}{"k1": {}}})
	t.Cleanup(func() { config.SetRuntime(nil) })

	var user string
	h := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ = UserFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/thing", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/thing", nil)
	req.Header.Set("Authorization", "Bearer "+SignIdentity("alice", "k1"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", user)
}

func TestSweepLimiters(t *testing.T) {
	setupKeys(t)
	Allow("bk-key")
	assert.Equal(t, 0, SweepLimiters(time.Hour))
	assert.Equal(t, 1, SweepLimiters(0))
}
