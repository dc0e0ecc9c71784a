package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"crewchat/pkg/logger"
	"crewchat/pkg/models"
	"crewchat/pkg/sanitize"
	"crewchat/pkg/session"
	"crewchat/pkg/store"
	"crewchat/pkg/telemetry"
	"crewchat/pkg/utils"
)

// handleFrame runs one inbound frame through the full accept pipeline:
// shape checks, rate limit, kind authorization, sanitization, persist,
// fan-out. Refusals answer only the sender and keep the connection up.
func (s *Server) handleFrame(c *client, data []byte) {
	userID := c.sess.UserID
	crewID := c.sess.CrewID

	// Membership is re-checked on every send, not just at connect. A
	// connection whose membership was revoked is no longer legitimate
	// and is closed, unlike ordinary frame refusals.
	if !s.dir.IsMember(crewID, userID) {
		s.prune(c.sess, "revoked")
		return
	}

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		telemetry.MessagesDenied.WithLabelValues("malformed").Inc()
		c.TryPush(errorFrame(crewID, "malformed frame"))
		return
	}
	if in.GroupID != "" && in.GroupID != crewID {
		telemetry.MessagesDenied.WithLabelValues("wrong_crew").Inc()
		c.TryPush(errorFrame(crewID, "frame addressed to another crew"))
		return
	}

	if !s.limiter.Allow(userID) {
		telemetry.RateLimited.Inc()
		telemetry.MessagesDenied.WithLabelValues("rate_limited").Inc()
		c.TryPush(errorFrame(crewID, "rate limit exceeded, slow down"))
		return
	}

	kind := models.Kind(in.MessageType)
	if kind == "" {
		kind = models.KindText
	}
	if !kind.Valid() || kind == models.KindSystem {
		telemetry.MessagesDenied.WithLabelValues("bad_kind").Inc()
		c.TryPush(errorFrame(crewID, "unsupported message type"))
		return
	}
	if kind == models.KindAnnouncement && !s.dir.IsOwner(crewID, userID) {
		telemetry.MessagesDenied.WithLabelValues("not_owner").Inc()
		c.TryPush(errorFrame(crewID, "only the crew owner can send announcements"))
		return
	}

	body, err := sanitize.Clean(in.Message)
	if err != nil {
		telemetry.MessagesDenied.WithLabelValues("rejected_body").Inc()
		c.TryPush(errorFrame(crewID, "message rejected: "+err.Error()))
		return
	}
	if sanitize.Spammy(body) {
		telemetry.MessagesDenied.WithLabelValues("spam").Inc()
		c.TryPush(errorFrame(crewID, "message looks like spam"))
		return
	}

	// Persist and fan out under the crew's ordering lock so no
	// recipient can observe two messages out of their persisted order.
	// TryPush never blocks, so the section stays short.
	mu := s.crewOrder(crewID)
	mu.Lock()
	defer mu.Unlock()

	m := models.Message{
		ID:     utils.GenID(),
		Crew:   crewID,
		Sender: userID,
		Body:   body,
		Kind:   kind,
		TS:     time.Now().UTC().UnixNano(),
		Active: true,
	}
	if err := store.SaveMessage(m); err != nil {
		logger.Error("message_save_failed", "crew", crewID, "error", err)
		c.TryPush(errorFrame(crewID, "could not store message"))
		return
	}
	telemetry.MessagesAccepted.Inc()
	s.Broadcast(m)
}

// Broadcast delivers m to every live session of its crew. Membership is
// re-checked per recipient at push time, so a member revoked after
// connecting is pruned here rather than served. Sessions whose buffers
// are full are pruned too; a client that cannot drain its socket is
// indistinguishable from a dead one.
func (s *Server) Broadcast(m models.Message) {
	frame, err := json.Marshal(OutboundFrom(m, s.names(m.Sender)))
	if err != nil {
		logger.Error("frame_encode_failed", "id", m.ID, "error", err)
		return
	}
	for _, sess := range s.registry.Snapshot(m.Crew) {
		if time.Since(sess.LastSeen()) > s.sessionTimeout {
			s.prune(sess, "expired")
			continue
		}
		if !s.dir.IsMember(m.Crew, sess.UserID) {
			s.prune(sess, "revoked")
			continue
		}
		if !sess.TryPush(frame) {
			s.prune(sess, "push_failed")
			continue
		}
		telemetry.BroadcastDeliveries.Inc()
	}
}

// prune removes a session discovered dead or unwelcome during fan-out.
func (s *Server) prune(sess *session.Session, reason string) {
	if s.registry.Unregister(sess.ID) {
		telemetry.SessionsPruned.WithLabelValues(reason).Inc()
		telemetry.LiveSessions.Set(float64(s.registry.Count()))
		logger.Info("session_pruned", "session", sess.ID, "user", sess.UserID, "reason", reason)
	}
	sess.Close()
}

// Inject persists and fans out a message on behalf of a backend
// collaborator rather than a live socket. The sender defaults to
// "system" and the kind to SYSTEM; the body runs through the same
// sanitizer as live traffic.
func (s *Server) Inject(crewID, sender, body string, kind models.Kind) (models.Message, error) {
	if sender == "" {
		sender = "system"
	}
	if kind == "" {
		kind = models.KindSystem
	}
	if !kind.Valid() {
		return models.Message{}, fmt.Errorf("unsupported message kind %q", kind)
	}
	clean, err := sanitize.Clean(body)
	if err != nil {
		return models.Message{}, err
	}
	mu := s.crewOrder(crewID)
	mu.Lock()
	defer mu.Unlock()
	m := models.Message{
		ID:     utils.GenID(),
		Crew:   crewID,
		Sender: sender,
		Body:   clean,
		Kind:   kind,
		TS:     time.Now().UTC().UnixNano(),
		Active: true,
	}
	if err := store.SaveMessage(m); err != nil {
		return models.Message{}, err
	}
	telemetry.MessagesAccepted.Inc()
	s.Broadcast(m)
	return m, nil
}

// seedHistory pushes the most recent crew messages to a freshly joined
// client, oldest first, so the UI renders context before live traffic.
func (s *Server) seedHistory(c *client, crewID string) {
	msgs, err := store.RecentMessages(crewID, historySeed)
	if err != nil {
		logger.Warn("history_seed_failed", "crew", crewID, "error", err)
		return
	}
	for _, m := range msgs {
		if m.Deleted {
			continue
		}
		frame, err := json.Marshal(OutboundFrom(m, s.names(m.Sender)))
		if err != nil {
			continue
		}
		if !c.TryPush(frame) {
			return
		}
	}
}
