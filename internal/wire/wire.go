// Package wire defines the message shapes shared by both transports.
// The duplex channel and the REST fallback speak the same payloads; this
// package is the single place that knows the backend's JSON.
package wire

import (
	"encoding/json"
	"fmt"
)

// EventType tags an inbound event from the backend.
type EventType string

const (
	EventQuestion   EventType = "question"
	EventEvaluation EventType = "evaluation"
	EventEnd        EventType = "end"
	EventError      EventType = "error"
)

// Evaluation is the backend's scored feedback on a previously submitted
// answer. Field names follow the backend JSON exactly.
type Evaluation struct {
	Question    string `json:"question"`
	HumanAnswer string `json:"human_answer"`
	IdealAnswer string `json:"llm_actual_answer"`
	Score       int    `json:"score"`
	Reason      string `json:"reason"`
}

// Event is a decoded inbound event. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type       EventType
	Question   string      // EventQuestion
	Evaluation *Evaluation // EventEvaluation
	Message    string      // EventEnd (informational) or EventError
}

// Outbound is a client-to-backend message on the duplex channel.
type Outbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// AnswerMessage builds the outbound answer frame.
func AnswerMessage(text string) Outbound {
	return Outbound{Type: "answer", Content: text}
}

// EndMessage builds the outbound end frame.
func EndMessage() Outbound {
	return Outbound{Type: "end"}
}

// rawFrame mirrors the union of everything the backend puts on the wire.
// Error frames carry "error" instead of "type".
type rawFrame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	Error   string          `json:"error"`
}

// DecodeEvent parses and validates a single inbound frame. Frames that are
// not valid JSON or do not match the event schema fail with an error; they
// never reach the session state machine.
func DecodeEvent(data []byte) (Event, error) {
	if err := validateFrame(data); err != nil {
		return Event{}, err
	}

	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}

	if raw.Error != "" {
		return Event{Type: EventError, Message: raw.Error}, nil
	}

	switch EventType(raw.Type) {
	case EventQuestion:
		var content string
		if err := json.Unmarshal(raw.Content, &content); err != nil {
			return Event{}, fmt.Errorf("question content: %w", err)
		}
		return Event{Type: EventQuestion, Question: content}, nil

	case EventEvaluation:
		var ev Evaluation
		if err := json.Unmarshal(raw.Content, &ev); err != nil {
			return Event{}, fmt.Errorf("evaluation content: %w", err)
		}
		return Event{Type: EventEvaluation, Evaluation: &ev}, nil

	case EventEnd:
		var content string
		if len(raw.Content) > 0 {
			// End frames may carry an informational message.
			_ = json.Unmarshal(raw.Content, &content)
		}
		return Event{Type: EventEnd, Message: content}, nil

	default:
		return Event{}, fmt.Errorf("unknown event type %q", raw.Type)
	}
}

// EncodeOutbound serializes an outbound message.
func EncodeOutbound(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", msg.Type, err)
	}
	return data, nil
}
