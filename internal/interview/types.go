package interview

import (
	"context"

	"github.com/asengupta/intervo/internal/wire"
)

// State is the session lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateAwaitingTransport
	StateAwaitingFirstQuestion
	StateAwaitingAnswer
	StateEnded
	StateErrored
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingTransport:
		return "awaiting-transport"
	case StateAwaitingFirstQuestion:
		return "awaiting-first-question"
	case StateAwaitingAnswer:
		return "awaiting-answer"
	case StateEnded:
		return "ended"
	case StateErrored:
		return "errored"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further submissions are accepted.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateErrored || s == StateDeleted
}

// Transport identifies the authoritative transport slot. Decided once per
// session, never re-evaluated.
type Transport int

const (
	TransportUndecided Transport = iota
	TransportPrimary
	TransportFallback
)

func (t Transport) String() string {
	switch t {
	case TransportPrimary:
		return "channel"
	case TransportFallback:
		return "fallback"
	default:
		return "undecided"
	}
}

// Question is the question currently awaiting an answer.
type Question struct {
	// Ordinal matches the question counter at delivery time, starting at 1.
	Ordinal int

	// Content is markdown text.
	Content string
}

// Evaluation is scored feedback attached to a previously answered question.
type Evaluation struct {
	Ordinal     int // the question this evaluation scores
	Score       int // 0-10
	IdealAnswer string
	Feedback    string
}

// Update is a published state snapshot for the presentation layer.
type Update struct {
	State      State
	Transport  Transport
	Question   *Question
	Evaluation *Evaluation

	// Err carries a recoverable submission failure, or the fatal error
	// when State is StateErrored.
	Err error
}

// ChannelState is the connection state of the primary transport.
type ChannelState int

const (
	ChannelConnecting ChannelState = iota
	ChannelOpen
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	default:
		return "closed"
	}
}

// Channel is the primary duplex transport. Implemented by ws.Channel.
type Channel interface {
	// Open starts connecting asynchronously. State moves Connecting to
	// Open on success, Closed on failure or remote close.
	Open(ctx context.Context, sessionID string)

	// Send transmits a frame. Returns an error when the channel is not
	// Open; the caller checks State before relying on this path.
	Send(msg wire.Outbound) error

	// Events delivers inbound events in arrival order. The channel is
	// closed when no further events will be delivered.
	Events() <-chan wire.Event

	// State returns the current connection state.
	State() ChannelState

	// Close tears the connection down. No events are delivered after
	// Close returns. Idempotent.
	Close() error
}

// StepReply is one fallback request's result: the next question plus the
// evaluation of the answer just submitted. Evaluation is nil when no prior
// question existed.
type StepReply struct {
	Question   string
	Evaluation *wire.Evaluation
}

// Fallback is the request/response transport. Implemented by api.Client.
type Fallback interface {
	StartInterview(ctx context.Context, sessionID string) (*StepReply, error)
	SubmitAnswer(ctx context.Context, sessionID, answer string) (*StepReply, error)
	EndInterview(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Tracer records session lifecycle events for troubleshooting. Implemented
// by journal.Journal; a nil Tracer disables tracing.
type Tracer interface {
	Trace(ctx context.Context, kind, detail string)
}
