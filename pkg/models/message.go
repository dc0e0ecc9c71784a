package models

// Kind classifies a chat message.
type Kind string

const (
	KindText         Kind = "TEXT"
	KindSystem       Kind = "SYSTEM"
	KindAnnouncement Kind = "ANNOUNCEMENT"
)

// Valid reports whether k is one of the three message kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindSystem, KindAnnouncement:
		return true
	}
	return false
}

type Message struct {
	ID string `json:"id"`
	// Crew is nulled (emptied) when the crew is torn down; the message is
	// retained so receipts recorded against it stay valid.
	Crew   string `json:"crew,omitempty"`
	Sender string `json:"sender"`
	Body   string `json:"body"`
	Kind   Kind   `json:"kind"`
	// TS is the send timestamp in UTC nanoseconds.
	TS int64 `json:"ts"`
	// Deleted flags a soft-deleted message: hidden from history views, id
	// kept stable for receipts.
	Deleted bool `json:"deleted,omitempty"`
	Active  bool `json:"active"`
}
