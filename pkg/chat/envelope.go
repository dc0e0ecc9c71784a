// Package chat implements the live messaging path: the websocket
// gatekeeper, per-connection pumps, and crew broadcast fan-out.
package chat

import (
	"encoding/json"

	"crewchat/pkg/models"
)

// Inbound is the frame a client sends on the socket.
type Inbound struct {
	GroupID     string `json:"groupId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
}

// Outbound is the frame delivered to every crew member.
type Outbound struct {
	MessageID   string `json:"messageId,omitempty"`
	GroupID     string `json:"groupId"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	Timestamp   int64  `json:"timestamp"`
}

// OutboundFrom renders a stored message as a wire frame.
func OutboundFrom(m models.Message, senderName string) Outbound {
	return Outbound{
		MessageID:   m.ID,
		GroupID:     m.Crew,
		SenderID:    m.Sender,
		SenderName:  senderName,
		Message:     m.Body,
		MessageType: string(m.Kind),
		Timestamp:   m.TS,
	}
}

// errorFrame is pushed back to a single sender when their frame was
// refused without dropping the connection.
func errorFrame(groupID, reason string) []byte {
	b, _ := json.Marshal(Outbound{
		GroupID:     groupID,
		Message:     reason,
		MessageType: string(models.KindSystem),
	})
	return b
}
