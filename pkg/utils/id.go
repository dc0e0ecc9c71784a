package utils

import "github.com/google/uuid"

// GenID returns a new message identifier.
func GenID() string { return "msg-" + uuid.NewString() }

// GenSessionID returns a new live-session identifier.
func GenSessionID() string { return uuid.NewString() }
