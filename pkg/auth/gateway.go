package auth

import (
	"context"
	"net/http"
	"sync"

	"crewchat/pkg/config"
	"crewchat/pkg/logger"
	"crewchat/pkg/utils"
)

// Role classifies an API key by what it may call.
type Role string

const (
	RoleBackend  Role = "backend"
	RoleFrontend Role = "frontend"
	RoleAdmin    Role = "admin"
)

type ctxKey int

const (
	roleKey ctxKey = iota
	userKey
)

var (
	keysMu   sync.RWMutex
	keyRoles map[string]Role
)

// SetAPIKeys installs the key table from configuration.
func SetAPIKeys(keys config.APIKeysConfig) {
	m := make(map[string]Role)
	for _, k := range keys.Backend {
		m[k] = RoleBackend
	}
	for _, k := range keys.Frontend {
		m[k] = RoleFrontend
	}
	for _, k := range keys.Admin {
		m[k] = RoleAdmin
	}
	keysMu.Lock()
	keyRoles = m
	keysMu.Unlock()
}

func roleForKey(key string) (Role, bool) {
	keysMu.RLock()
	defer keysMu.RUnlock()
	r, ok := keyRoles[key]
	return r, ok
}

// RoleFrom returns the caller role recorded on the request context.
func RoleFrom(ctx context.Context) (Role, bool) {
	r, ok := ctx.Value(roleKey).(Role)
	return r, ok
}

// UserFrom returns the verified user identity on the request context.
func UserFrom(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey).(string)
	return u, ok
}

// WithUser records a verified user identity on ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// RequireAPIKey gates a handler on X-API-Key carrying one of the
// allowed roles. Admin keys pass every gate.
func RequireAPIKey(allowed ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				utils.JSONError(w, http.StatusUnauthorized, "missing API key")
				return
			}
			role, ok := roleForKey(key)
			if !ok {
				logger.Warn("api_key_rejected", "path", r.URL.Path)
				utils.JSONError(w, http.StatusUnauthorized, "unknown API key")
				return
			}
			if !Allow(key) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			if role != RoleAdmin {
				permitted := false
				for _, a := range allowed {
					if role == a {
						permitted = true
						break
					}
				}
				if !permitted {
					utils.JSONError(w, http.StatusForbidden, "key role not permitted")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey, role)))
		})
	}
}

// RequireIdentity gates a handler on a verified bearer identity token
// and records the user on the context.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := BearerToken(r.Header.Get("Authorization"))
		if tok == "" {
			utils.JSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := VerifyIdentity(tok)
		if err != nil {
			utils.JSONError(w, http.StatusUnauthorized, "invalid identity token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}
