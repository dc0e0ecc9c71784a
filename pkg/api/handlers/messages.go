package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"crewchat/pkg/auth"
	"crewchat/pkg/logger"
	"crewchat/pkg/models"
	"crewchat/pkg/store"
	"crewchat/pkg/utils"
)

// ListMessages answers GET /v1/crews/{crew}/messages?limit=&before=.
// Results are newest first; before is a nanosecond timestamp cursor.
// Soft-deleted messages come back as tombstones with an empty body.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	crewID := mux.Vars(r)["crew"]
	if !h.Dir.Exists(crewID) {
		utils.JSONError(w, http.StatusNotFound, "unknown crew")
		return
	}
	if user, ok := auth.UserFrom(r.Context()); ok && !h.Dir.IsMember(crewID, user) {
		utils.JSONError(w, http.StatusForbidden, "not a crew member")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = n
	}
	msgs, err := store.ListMessages(crewID, limit, before)
	if err != nil {
		logger.Error("list_messages_failed", "crew", crewID, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

// GetMessage answers GET /v1/messages/{id}.
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := store.GetMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "unknown message")
		return
	}
	utils.JSONWrite(w, http.StatusOK, m)
}

// DeleteMessage answers DELETE /v1/messages/{id}?actor=. The message is
// tombstoned, not erased; receipts written against it survive. Only the
// sender or the crew owner may delete; the acting user comes from the
// identity token when present, else the actor parameter.
func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor, ok := auth.UserFrom(r.Context())
	if !ok {
		actor = r.URL.Query().Get("actor")
	}
	if actor == "" {
		utils.JSONError(w, http.StatusBadRequest, "actor is required")
		return
	}
	m, err := store.GetMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "unknown message")
		return
	}
	if actor != m.Sender && !h.Dir.IsOwner(m.Crew, actor) {
		utils.JSONError(w, http.StatusForbidden, "only the sender or crew owner may delete")
		return
	}
	if m.Deleted {
		utils.JSONWrite(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
		return
	}
	if err := store.SoftDeleteMessage(id); err != nil {
		logger.Error("message_delete_failed", "id", id, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "could not delete message")
		return
	}
	logger.Info("message_deleted", "id", id, "crew", m.Crew, "actor", actor)
	utils.JSONWrite(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// PostMessage answers POST /v1/crews/{crew}/messages for backend
// collaborators injecting system notices. The frame is persisted and
// fanned out like any live message.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	crewID := mux.Vars(r)["crew"]
	if !h.Dir.Exists(crewID) {
		utils.JSONError(w, http.StatusNotFound, "unknown crew")
		return
	}
	var req struct {
		Sender string `json:"sender"`
		Body   string `json:"body"`
		Kind   string `json:"kind"`
	}
	if err := utils.JSONRead(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	m, err := h.Chat.Inject(crewID, req.Sender, req.Body, models.Kind(req.Kind))
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusCreated, m)
}
