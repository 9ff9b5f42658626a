// Package interview implements the session coordinator: the state machine
// that owns one interview session, selects the authoritative transport, and
// sequences the question/answer/evaluation lifecycle exactly once per step.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asengupta/intervo/internal/wire"
)

const (
	// DefaultGrace is how long the coordinator waits for the primary
	// channel to deliver before committing to the fallback path.
	DefaultGrace = 3 * time.Second

	// DefaultCallTimeout bounds a single fallback request.
	DefaultCallTimeout = 60 * time.Second
)

// Config carries the coordinator's dependencies. Channel and Fallback are
// required; zero durations take the defaults.
type Config struct {
	SessionID   string
	Channel     Channel
	Fallback    Fallback
	Grace       time.Duration
	CallTimeout time.Duration
	Tracer      Tracer
}

type replyKind int

const (
	replyStart replyKind = iota
	replyStep
	replyEnd
)

// fallbackReply carries one completed fallback call into the run loop.
type fallbackReply struct {
	kind replyKind
	step *StepReply
	err  error
}

// Coordinator owns all state for a single session. Construct one per
// session and Close it on teardown. All transitions are applied by the run
// goroutine; public methods only validate, flag, and dispatch sends.
type Coordinator struct {
	cfg Config

	mu         sync.Mutex
	state      State
	transport  Transport
	counter    int
	question   *Question
	evaluation *Evaluation
	pending    bool
	ending     bool
	fatal      error

	updates chan Update
	replies chan fallbackReply

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a Coordinator for the given session.
func New(cfg Config) (*Coordinator, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	if cfg.Channel == nil || cfg.Fallback == nil {
		return nil, errors.New("both transports are required")
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	return &Coordinator{
		cfg:     cfg,
		state:   StateInitializing,
		updates: make(chan Update, 64),
		replies: make(chan fallbackReply, 4),
	}, nil
}

// SessionID returns the externally assigned session identifier.
func (c *Coordinator) SessionID() string { return c.cfg.SessionID }

// Updates delivers state snapshots to the presentation layer. The consumer
// must drain it until a terminal state arrives.
func (c *Coordinator) Updates() <-chan Update { return c.updates }

// Start opens the primary channel and begins the session. Call once.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateInitializing {
		c.mu.Unlock()
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.state = StateAwaitingTransport
	c.mu.Unlock()

	c.trace("session", "start")
	c.cfg.Channel.Open(c.ctx, c.cfg.SessionID)
	go c.run()
}

// Snapshot returns the current published state.
func (c *Coordinator) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SubmitAnswer submits answer text over the authoritative transport.
// Rejected locally, with no transport call, when the text is blank, when a
// submission is already in flight, or when the session is terminal.
func (c *Coordinator) SubmitAnswer(text string) error {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return ErrSessionClosed
	}
	if c.pending || c.state != StateAwaitingAnswer {
		return ErrSubmissionInProgress
	}
	if trimmed == "" {
		return ErrEmptyAnswer
	}

	c.pending = true
	c.trace("answer", fmt.Sprintf("submit q%d via %s", c.counter, c.transport))

	if c.transport == TransportPrimary {
		return c.sendLocked("answer", wire.AnswerMessage(trimmed))
	}

	go c.callFallback(replyStep, func(ctx context.Context) (*StepReply, error) {
		return c.cfg.Fallback.SubmitAnswer(ctx, c.cfg.SessionID, trimmed)
	})
	return nil
}

// EndSession requests the backend to end the interview. Like SubmitAnswer,
// it is rejected while a submission is in flight or after a terminal state.
func (c *Coordinator) EndSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return ErrSessionClosed
	}
	if c.pending || c.state != StateAwaitingAnswer {
		return ErrSubmissionInProgress
	}

	c.pending = true
	c.ending = true
	c.trace("session", "end requested")

	if c.transport == TransportPrimary {
		return c.sendLocked("end", wire.EndMessage())
	}

	go c.callFallback(replyEnd, func(ctx context.Context) (*StepReply, error) {
		return nil, c.cfg.Fallback.EndInterview(ctx, c.cfg.SessionID)
	})
	return nil
}

// DeleteSession irreversibly deletes the session on the backend and
// discards all local state. Only valid once the session has Ended.
func (c *Coordinator) DeleteSession(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDeleted {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.state != StateEnded {
		c.mu.Unlock()
		return fmt.Errorf("cannot delete a session in state %s", c.state)
	}
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	if err := c.cfg.Fallback.DeleteSession(callCtx, c.cfg.SessionID); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateDeleted
	c.question = nil
	c.evaluation = nil
	c.mu.Unlock()
	c.trace("session", "deleted")
	return nil
}

// Close tears the coordinator down: the channel is closed and any in-flight
// fallback call's effect on local state is abandoned. Idempotent.
func (c *Coordinator) Close() error {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		_ = c.cfg.Channel.Close()
		c.trace("session", "closed")
	})
	return nil
}

// run applies every state transition for the session. Runs until a terminal
// state is published or the context is canceled.
func (c *Coordinator) run() {
	grace := time.NewTimer(c.cfg.Grace)
	defer grace.Stop()

	events := c.cfg.Channel.Events()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				if c.channelLossIsFatal() {
					c.fail(&TransportError{Op: "receive", Err: errors.New("channel closed")})
					return
				}
				continue
			}
			if done := c.handleChannelEvent(ev); done {
				return
			}

		case <-grace.C:
			c.handleGraceElapsed()

		case r := <-c.replies:
			if done := c.handleReply(r); done {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// channelLossIsFatal reports whether the event stream ending mid-session is
// an unrecoverable failure. Loss before the transport decision is not: the
// grace timer still decides fallback.
func (c *Coordinator) channelLossIsFatal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport == TransportPrimary && !c.state.Terminal() && c.ctx.Err() == nil
}

// handleGraceElapsed applies the fallback decision rule: if no channel event
// arrived within the grace window, the fallback path becomes authoritative
// for the rest of the session and StartInterview is called exactly once.
func (c *Coordinator) handleGraceElapsed() {
	c.mu.Lock()
	if c.transport != TransportUndecided {
		c.mu.Unlock()
		return
	}
	c.transport = TransportFallback
	if c.state == StateAwaitingTransport {
		c.state = StateAwaitingFirstQuestion
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.trace("transport", "grace elapsed, fallback authoritative")
	c.publish(snap)
	_ = c.cfg.Channel.Close()

	go c.callFallback(replyStart, func(ctx context.Context) (*StepReply, error) {
		return c.cfg.Fallback.StartInterview(ctx, c.cfg.SessionID)
	})
}

// handleChannelEvent applies one inbound channel event. The first event
// commits the primary transport as authoritative. Returns true when the
// session reached a terminal state.
func (c *Coordinator) handleChannelEvent(ev wire.Event) bool {
	c.mu.Lock()
	if c.transport == TransportFallback {
		// A slow channel lost the race; its stream is not authoritative.
		c.mu.Unlock()
		return false
	}
	if c.transport == TransportUndecided {
		c.transport = TransportPrimary
		if c.state == StateAwaitingTransport {
			c.state = StateAwaitingFirstQuestion
		}
		c.mu.Unlock()
		c.trace("transport", "channel authoritative")
		c.mu.Lock()
	}

	switch ev.Type {
	case wire.EventQuestion:
		c.applyQuestionLocked(ev.Question)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.trace("question", fmt.Sprintf("q%d received", snap.Question.Ordinal))
		c.publish(snap)
		return false

	case wire.EventEvaluation:
		c.applyEvaluationLocked(ev.Evaluation)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return false

	case wire.EventEnd:
		c.mu.Unlock()
		c.finish()
		return true

	case wire.EventError:
		c.mu.Unlock()
		c.fail(fmt.Errorf("backend error: %s", ev.Message))
		return true
	}

	c.mu.Unlock()
	return false
}

// handleReply applies one completed fallback call. Returns true when the
// session reached a terminal state.
func (c *Coordinator) handleReply(r fallbackReply) bool {
	switch r.kind {
	case replyStart:
		if r.err != nil {
			// No transport left to fall back to.
			c.fail(r.err)
			return true
		}
		c.mu.Lock()
		c.applyQuestionLocked(r.step.Question)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.trace("question", "q1 received via fallback")
		c.publish(snap)
		return false

	case replyStep:
		if r.err != nil {
			return c.stepFailed(r.err)
		}
		c.mu.Lock()
		c.applyEvaluationLocked(r.step.Evaluation)
		c.applyQuestionLocked(r.step.Question)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
		return false

	case replyEnd:
		if r.err != nil {
			return c.stepFailed(r.err)
		}
		c.finish()
		return true
	}
	return false
}

// stepFailed surfaces a failed fallback submission. An unknown session is
// fatal; anything else leaves the session awaiting an explicit resubmit.
// A timed-out call may or may not have been applied server-side, so the
// coordinator never re-sends on its own.
func (c *Coordinator) stepFailed(err error) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		c.fail(err)
		return true
	}

	c.mu.Lock()
	c.pending = false
	c.ending = false
	snap := c.snapshotLocked()
	snap.Err = err
	c.mu.Unlock()

	c.trace("error", err.Error())
	c.publish(snap)
	return false
}

// applyQuestionLocked advances the question counter and installs the new
// current question. Caller holds mu.
func (c *Coordinator) applyQuestionLocked(content string) {
	c.counter++
	c.question = &Question{Ordinal: c.counter, Content: content}
	c.pending = false
	c.state = StateAwaitingAnswer
}

// applyEvaluationLocked attaches an evaluation to the question that was
// just answered. A stray evaluation with no prior question is dropped: the
// backend omits it when start and first-submit raced, and an unsolicited
// one has nothing to correlate to. Caller holds mu.
func (c *Coordinator) applyEvaluationLocked(ev *wire.Evaluation) {
	if ev == nil || c.counter == 0 {
		return
	}
	c.evaluation = &Evaluation{
		Ordinal:     c.counter,
		Score:       ev.Score,
		IdealAnswer: ev.IdealAnswer,
		Feedback:    ev.Reason,
	}
}

// finish transitions to Ended and releases the channel.
func (c *Coordinator) finish() {
	c.mu.Lock()
	c.state = StateEnded
	c.pending = false
	c.ending = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.trace("session", "ended")
	c.publish(snap)
	_ = c.cfg.Channel.Close()
}

// fail transitions to Errored with the given fatal error.
func (c *Coordinator) fail(err error) {
	c.mu.Lock()
	c.state = StateErrored
	c.pending = false
	c.fatal = err
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.trace("error", err.Error())
	c.publish(snap)
	_ = c.cfg.Channel.Close()
}

// sendLocked transmits a frame on the primary channel. A send failure after
// the channel was committed as authoritative is unrecoverable: the
// coordinator never switches transports mid-session. Caller holds mu.
func (c *Coordinator) sendLocked(op string, msg wire.Outbound) error {
	if c.cfg.Channel.State() != ChannelOpen {
		c.pending = false
		c.state = StateErrored
		c.fatal = &TransportError{Op: op, Err: errors.New("channel is not open")}
		snap := c.snapshotLocked()
		go c.publish(snap)
		return c.fatal
	}
	if err := c.cfg.Channel.Send(msg); err != nil {
		c.pending = false
		c.state = StateErrored
		c.fatal = &TransportError{Op: op, Err: err}
		snap := c.snapshotLocked()
		go c.publish(snap)
		return c.fatal
	}
	return nil
}

// callFallback runs one fallback request with the configured deadline and
// feeds the result to the run loop. Abandoned if the coordinator is torn
// down first.
func (c *Coordinator) callFallback(kind replyKind, call func(ctx context.Context) (*StepReply, error)) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.CallTimeout)
	defer cancel()

	step, err := call(ctx)
	select {
	case c.replies <- fallbackReply{kind: kind, step: step, err: err}:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) snapshotLocked() Update {
	u := Update{
		State:     c.state,
		Transport: c.transport,
		Err:       c.fatal,
	}
	if c.question != nil {
		q := *c.question
		u.Question = &q
	}
	if c.evaluation != nil {
		ev := *c.evaluation
		u.Evaluation = &ev
	}
	return u
}

func (c *Coordinator) publish(u Update) {
	select {
	case c.updates <- u:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) trace(kind, detail string) {
	if c.cfg.Tracer == nil {
		return
	}
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	c.cfg.Tracer.Trace(ctx, kind, detail)
}
