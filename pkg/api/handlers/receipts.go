package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"crewchat/pkg/auth"
	"crewchat/pkg/store"
	"crewchat/pkg/utils"
)

// MarkRead answers POST /v1/receipts. The caller is the authenticated
// user; the body names either explicit message IDs or a catch-up anchor
// ("everything in this crew from afterId on"). Writes are queued and
// the call returns immediately; marking a message twice is a no-op.
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	reader, ok := auth.UserFrom(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	var req struct {
		MessageIDs []string `json:"messageIds"`
		GroupID    string   `json:"groupId"`
		AfterID    string   `json:"afterId"`
	}
	if err := utils.JSONRead(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch {
	case req.AfterID != "":
		if req.GroupID == "" {
			utils.JSONError(w, http.StatusBadRequest, "afterId requires groupId")
			return
		}
		if !h.Dir.IsMember(req.GroupID, reader) {
			utils.JSONError(w, http.StatusForbidden, "not a crew member")
			return
		}
		h.Pool.EnqueueAllAfter(req.GroupID, req.AfterID, reader)
	case len(req.MessageIDs) > 0:
		h.Pool.Enqueue(req.MessageIDs, reader)
	default:
		utils.JSONError(w, http.StatusBadRequest, "nothing to mark")
		return
	}
	utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// MessageReaders answers GET /v1/messages/{id}/readers.
func (h *Handlers) MessageReaders(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := store.GetMessage(id); err != nil {
		utils.JSONError(w, http.StatusNotFound, "unknown message")
		return
	}
	readers, err := store.MessageReaders(id)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "could not list readers")
		return
	}
	if readers == nil {
		readers = []string{}
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"messageId": id, "readers": readers})
}

// UnreadCount answers GET /v1/crews/{crew}/unread for the
// authenticated user. Own and tombstoned messages never count.
func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	reader, ok := auth.UserFrom(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	crewID := mux.Vars(r)["crew"]
	if !h.Dir.IsMember(crewID, reader) {
		utils.JSONError(w, http.StatusForbidden, "not a crew member")
		return
	}
	n, err := store.UnreadCount(crewID, reader)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "could not count unread")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"groupId": crewID, "unread": n})
}
