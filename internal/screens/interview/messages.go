package interview

import (
	session "github.com/asengupta/intervo/internal/interview"
)

// sessionUpdateMsg carries a coordinator state snapshot into the screen.
type sessionUpdateMsg struct {
	Update session.Update
	// Closed is true when the coordinator's update stream has ended.
	Closed bool
}

// submitRejectedMsg is sent when the coordinator rejects a submission
// locally, before any transport call.
type submitRejectedMsg struct {
	Err error
}
