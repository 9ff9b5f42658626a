package interview

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAnswer rejects empty or whitespace-only answer text before
	// any transport is touched.
	ErrEmptyAnswer = errors.New("answer text is empty")

	// ErrSubmissionInProgress rejects a submit or end call while a prior
	// submission is still awaiting its reply.
	ErrSubmissionInProgress = errors.New("a submission is already in flight")

	// ErrSessionClosed rejects any action after the session reached a
	// terminal state.
	ErrSessionClosed = errors.New("session is closed")
)

// TransportError indicates a channel or network failure. The session either
// falls back (once, at start) or surfaces the error; it is never silently
// retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SessionError indicates the backend does not recognize the session. Fatal.
type SessionError struct {
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s rejected by backend: %v", e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
