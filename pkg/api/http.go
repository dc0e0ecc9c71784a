// Package api assembles the HTTP surface: health, metrics, the
// websocket gate and the versioned collaborator endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crewchat/pkg/api/handlers"
	"crewchat/pkg/auth"
	"crewchat/pkg/chat"
	"crewchat/pkg/config"
	"crewchat/pkg/logger"
	"crewchat/pkg/store"
	"crewchat/pkg/utils"
)

// NewRouter builds the full route table.
func NewRouter(h *handlers.Handlers, chatSrv *chat.Server, sec config.SecurityConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLog)

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Identity for the socket travels in-band; no API key at the gate.
	r.HandleFunc("/ws/chat/{crew}", chatSrv.ServeWS).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.CORS(sec.CORS.AllowedOrigins))
	v1.Use(auth.IPWhitelist(sec.IPWhitelist))

	// User-facing endpoints: frontend or backend key plus a verified
	// identity token naming the acting user.
	user := v1.NewRoute().Subrouter()
	user.Use(auth.RequireAPIKey(auth.RoleFrontend, auth.RoleBackend))
	user.Use(auth.RequireIdentity)
	user.HandleFunc("/receipts", h.MarkRead).Methods(http.MethodPost)
	user.HandleFunc("/crews/{crew}/unread", h.UnreadCount).Methods(http.MethodGet)
	user.HandleFunc("/crews/{crew}/messages", h.ListMessages).Methods(http.MethodGet)
	user.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	user.HandleFunc("/me/notifications", h.GetNotifyPrefs).Methods(http.MethodGet)
	user.HandleFunc("/me/notifications", h.PutNotifyPrefs).Methods(http.MethodPut)

	// Service endpoints: backend key only, no user identity.
	svc := v1.NewRoute().Subrouter()
	svc.Use(auth.RequireAPIKey(auth.RoleBackend))
	svc.HandleFunc("/tokens", h.MintToken).Methods(http.MethodPost)
	svc.HandleFunc("/crews", h.CreateCrew).Methods(http.MethodPost)
	svc.HandleFunc("/crews/{crew}", h.DeleteCrew).Methods(http.MethodDelete)
	svc.HandleFunc("/crews/{crew}/members", h.ListMembers).Methods(http.MethodGet)
	svc.HandleFunc("/crews/{crew}/members/{user}", h.AddMember).Methods(http.MethodPut)
	svc.HandleFunc("/crews/{crew}/members/{user}", h.RemoveMember).Methods(http.MethodDelete)
	svc.HandleFunc("/crews/{crew}/messages", h.PostMessage).Methods(http.MethodPost)
	svc.HandleFunc("/messages/{id}", h.GetMessage).Methods(http.MethodGet)
	svc.HandleFunc("/messages/{id}", h.DeleteMessage).Methods(http.MethodDelete)
	svc.HandleFunc("/messages/{id}/readers", h.MessageReaders).Methods(http.MethodGet)

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	if !store.Ready() {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.LogRequest(r)
		next.ServeHTTP(w, r)
	})
}
