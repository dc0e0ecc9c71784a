package auth

import (
	"net"
	"net/http"
	"strings"

	"crewchat/pkg/utils"
)

// CORS applies the configured allowed origins and answers preflight.
// An empty origin list disables cross-origin access entirely.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; ok || allowAll {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPWhitelist restricts a handler to the listed remote addresses. An
// empty list admits everyone.
func IPWhitelist(ips []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		allowed[strings.TrimSpace(ip)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) > 0 {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				if _, ok := allowed[host]; !ok {
					utils.JSONError(w, http.StatusForbidden, "address not permitted")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
