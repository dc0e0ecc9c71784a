// Package handlers implements the collaborator HTTP endpoints: message
// history and moderation, read receipts, crew administration and user
// notification preferences.
package handlers

import (
	"crewchat/pkg/chat"
	"crewchat/pkg/receipts"
	"crewchat/pkg/roster"
)

// Handlers carries the dependencies the endpoints act on.
type Handlers struct {
	Dir  *roster.StaticDirectory
	Pool *receipts.Pool
	Chat *chat.Server
}

// New wires the endpoint set.
func New(dir *roster.StaticDirectory, pool *receipts.Pool, chatSrv *chat.Server) *Handlers {
	return &Handlers{Dir: dir, Pool: pool, Chat: chatSrv}
}
