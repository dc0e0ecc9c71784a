package handlers

import (
	"net/http"

	"crewchat/pkg/auth"
	"crewchat/pkg/config"
	"crewchat/pkg/models"
	"crewchat/pkg/store"
	"crewchat/pkg/utils"
)

// Me answers GET /v1/me with the authenticated identity. Display names
// fall back to the user ID until a profile collaborator is wired.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	utils.JSONWrite(w, http.StatusOK, h.Dir.GetUser(user))
}

// GetNotifyPrefs answers GET /v1/me/notifications for the
// authenticated user.
func (h *Handlers) GetNotifyPrefs(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	p, err := store.GetNotifyPrefs(user)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "could not load preferences")
		return
	}
	utils.JSONWrite(w, http.StatusOK, p)
}

// PutNotifyPrefs answers PUT /v1/me/notifications.
func (h *Handlers) PutNotifyPrefs(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	var req struct {
		Enabled    bool     `json:"enabled"`
		MutedCrews []string `json:"muted_crews"`
	}
	if err := utils.JSONRead(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	p := models.NotifyPrefs{UserID: user, Enabled: req.Enabled, MutedCrews: req.MutedCrews}
	if err := store.PutNotifyPrefs(p); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "could not store preferences")
		return
	}
	utils.JSONWrite(w, http.StatusOK, p)
}

// MintToken answers POST /v1/tokens for backend collaborators that
// need to hand an identity token to a user-facing client. Signing uses
// the first configured key.
func (h *Handlers) MintToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := utils.JSONRead(r, &req); err != nil || req.UserID == "" {
		utils.JSONError(w, http.StatusBadRequest, "userId is required")
		return
	}
	key := config.PrimarySigningKey()
	if key == "" {
		utils.JSONError(w, http.StatusServiceUnavailable, "no signing keys configured")
		return
	}
	tok := auth.SignIdentity(req.UserID, key)
	utils.JSONWrite(w, http.StatusOK, map[string]string{"userId": req.UserID, "token": tok})
}
