package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"crewchat/pkg/logger"
	"crewchat/pkg/store"
	"crewchat/pkg/utils"
)

// CreateCrew answers POST /v1/crews.
func (h *Handlers) CreateCrew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string `json:"id"`
		Owner string `json:"owner"`
	}
	if err := utils.JSONRead(r, &req); err != nil || req.ID == "" || req.Owner == "" {
		utils.JSONError(w, http.StatusBadRequest, "id and owner are required")
		return
	}
	if err := h.Dir.AddCrew(req.ID, req.Owner); err != nil {
		utils.JSONError(w, http.StatusConflict, err.Error())
		return
	}
	logger.Info("crew_created", "crew", req.ID, "owner", req.Owner)
	utils.JSONWrite(w, http.StatusCreated, map[string]string{"id": req.ID, "owner": req.Owner})
}

// DeleteCrew answers DELETE /v1/crews/{crew}: crew teardown. Live
// sessions are cut loose on the next fan-out or sweep; stored messages
// are detached from the crew but kept, so receipts stay resolvable.
func (h *Handlers) DeleteCrew(w http.ResponseWriter, r *http.Request) {
	crewID := mux.Vars(r)["crew"]
	if err := h.Dir.RemoveCrew(crewID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "unknown crew")
		return
	}
	detached, err := store.DetachCrewMessages(crewID)
	if err != nil {
		logger.Error("crew_detach_failed", "crew", crewID, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "crew removed but messages not detached")
		return
	}
	for _, s := range h.Chat.Registry().Snapshot(crewID) {
		h.Chat.Registry().Unregister(s.ID)
		s.Close()
	}
	logger.Info("crew_removed", "crew", crewID, "messages_detached", detached)
	utils.JSONWrite(w, http.StatusOK, map[string]any{"id": crewID, "messagesDetached": detached})
}

// ListMembers answers GET /v1/crews/{crew}/members.
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	crewID := mux.Vars(r)["crew"]
	if !h.Dir.Exists(crewID) {
		utils.JSONError(w, http.StatusNotFound, "unknown crew")
		return
	}
	members := h.Dir.Members(crewID)
	utils.JSONWrite(w, http.StatusOK, map[string]any{"groupId": crewID, "members": members})
}

// AddMember answers PUT /v1/crews/{crew}/members/{user}.
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.Dir.AddMember(vars["crew"], vars["user"]); err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.Info("member_added", "crew", vars["crew"], "user", vars["user"])
	utils.JSONWrite(w, http.StatusOK, map[string]string{"groupId": vars["crew"], "userId": vars["user"]})
}

// RemoveMember answers DELETE /v1/crews/{crew}/members/{user}. The
// user's live sessions on this crew are dropped immediately rather than
// left for the next broadcast to prune.
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	crewID, userID := vars["crew"], vars["user"]
	if err := h.Dir.RemoveMember(crewID, userID); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, s := range h.Chat.Registry().ForUser(userID) {
		if s.CrewID != crewID {
			continue
		}
		h.Chat.Registry().Unregister(s.ID)
		s.Close()
	}
	logger.Info("member_removed", "crew", crewID, "user", userID)
	utils.JSONWrite(w, http.StatusOK, map[string]string{"groupId": crewID, "userId": userID})
}
