package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asengupta/intervo/internal/wire"
)

// mockChannel implements Channel for testing. The connection state is fixed
// by the test; events are pushed through the events channel.
type mockChannel struct {
	mu     sync.Mutex
	state  ChannelState
	events chan wire.Event
	sent   []wire.Outbound
	opens  int
	closes int
}

func newMockChannel(state ChannelState) *mockChannel {
	return &mockChannel{state: state, events: make(chan wire.Event, 8)}
}

func (m *mockChannel) Open(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
}

func (m *mockChannel) Send(msg wire.Outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ChannelOpen {
		return errors.New("not open")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockChannel) Events() <-chan wire.Event { return m.events }

func (m *mockChannel) State() ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.state = ChannelClosed
	return nil
}

func (m *mockChannel) sentFrames() []wire.Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.Outbound, len(m.sent))
	copy(out, m.sent)
	return out
}

// mockFallback implements Fallback with canned replies and call counting.
type mockFallback struct {
	mu          sync.Mutex
	startCalls  int
	submitCalls int
	endCalls    int
	deleteCalls int
	startReply  *StepReply
	startErr    error
	submitReply *StepReply
	submitErr   error
	endErr      error
	deleteErr   error
}

func (m *mockFallback) StartInterview(_ context.Context, _ string) (*StepReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	return m.startReply, m.startErr
}

func (m *mockFallback) SubmitAnswer(_ context.Context, _, _ string) (*StepReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++
	return m.submitReply, m.submitErr
}

func (m *mockFallback) EndInterview(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endCalls++
	return m.endErr
}

func (m *mockFallback) DeleteSession(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	return m.deleteErr
}

func (m *mockFallback) calls() (start, submit, end, del int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls, m.submitCalls, m.endCalls, m.deleteCalls
}

func newTestCoordinator(t *testing.T, ch *mockChannel, fb *mockFallback, grace time.Duration) *Coordinator {
	t.Helper()
	c, err := New(Config{
		SessionID:   "abc",
		Channel:     ch,
		Fallback:    fb,
		Grace:       grace,
		CallTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// awaitUpdate drains updates until pred matches or the test times out.
func awaitUpdate(t *testing.T, c *Coordinator, pred func(Update) bool) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-c.Updates():
			if pred(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for update")
		}
	}
}

func hasQuestion(ordinal int) func(Update) bool {
	return func(u Update) bool {
		return u.Question != nil && u.Question.Ordinal == ordinal
	}
}

func inState(s State) func(Update) bool {
	return func(u Update) bool { return u.State == s }
}

func TestFallbackDecision_ChannelNeverOpens(t *testing.T) {
	ch := newMockChannel(ChannelConnecting)
	fb := &mockFallback{startReply: &StepReply{Question: "Explain X"}}
	c := newTestCoordinator(t, ch, fb, 20*time.Millisecond)

	c.Start(context.Background())

	u := awaitUpdate(t, c, hasQuestion(1))
	assert.Equal(t, StateAwaitingAnswer, u.State)
	assert.Equal(t, TransportFallback, u.Transport)
	assert.Equal(t, "Explain X", u.Question.Content)

	start, _, _, _ := fb.calls()
	assert.Equal(t, 1, start, "StartInterview must be called exactly once")
	assert.Empty(t, ch.sentFrames(), "no primary send after fallback is authoritative")
}

func TestFallbackScenario_SubmitAttachesEvaluationToPreviousOrdinal(t *testing.T) {
	ch := newMockChannel(ChannelConnecting)
	fb := &mockFallback{
		startReply: &StepReply{Question: "Explain X"},
		submitReply: &StepReply{
			Question:   "Explain Z",
			Evaluation: &wire.Evaluation{Score: 7, Reason: "partial"},
		},
	}
	c := newTestCoordinator(t, ch, fb, 10*time.Millisecond)
	c.Start(context.Background())
	awaitUpdate(t, c, hasQuestion(1))

	require.NoError(t, c.SubmitAnswer("Y"))

	u := awaitUpdate(t, c, hasQuestion(2))
	assert.Equal(t, "Explain Z", u.Question.Content)
	require.NotNil(t, u.Evaluation)
	assert.Equal(t, 1, u.Evaluation.Ordinal)
	assert.Equal(t, 7, u.Evaluation.Score)
	assert.Equal(t, "partial", u.Evaluation.Feedback)
}

func TestPrimaryPath_QuestionBeforeGraceSuppressesFallback(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "First?"}

	u := awaitUpdate(t, c, hasQuestion(1))
	assert.Equal(t, TransportPrimary, u.Transport)

	// Let the grace window pass; the decision must not be re-evaluated.
	time.Sleep(60 * time.Millisecond)
	start, _, _, _ := fb.calls()
	assert.Zero(t, start, "fallback must not start once the channel is authoritative")
}

func TestPrimaryPath_AnswerRoundTrip(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "First?"}
	awaitUpdate(t, c, hasQuestion(1))

	require.NoError(t, c.SubmitAnswer("because of scheduling"))

	frames := ch.sentFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, "answer", frames[0].Type)
	assert.Equal(t, "because of scheduling", frames[0].Content)

	ch.events <- wire.Event{Type: wire.EventEvaluation, Evaluation: &wire.Evaluation{Score: 9, Reason: "good"}}
	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "Second?"}

	u := awaitUpdate(t, c, hasQuestion(2))
	require.NotNil(t, u.Evaluation)
	assert.Equal(t, 1, u.Evaluation.Ordinal)
	assert.Equal(t, 9, u.Evaluation.Score)

	_, submit, _, _ := fb.calls()
	assert.Zero(t, submit)
}

func TestQuestionCounter_MonotonicAcrossAnswers(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "q"}
	awaitUpdate(t, c, hasQuestion(1))

	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, c.SubmitAnswer("answer"))
		ch.events <- wire.Event{Type: wire.EventQuestion, Question: "q"}
		u := awaitUpdate(t, c, hasQuestion(i+2))
		assert.Equal(t, i+2, u.Question.Ordinal)
	}
}

func TestSubmitAnswer_EmptyRejectedLocally(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "q"}
	awaitUpdate(t, c, hasQuestion(1))

	assert.ErrorIs(t, c.SubmitAnswer(""), ErrEmptyAnswer)
	assert.ErrorIs(t, c.SubmitAnswer("   \n\t"), ErrEmptyAnswer)
	assert.Empty(t, ch.sentFrames(), "blank answers must not reach the transport")
}

func TestSubmitAnswer_RejectedWhileInFlight(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "q"}
	awaitUpdate(t, c, hasQuestion(1))

	require.NoError(t, c.SubmitAnswer("first"))
	assert.ErrorIs(t, c.SubmitAnswer("second"), ErrSubmissionInProgress)
	assert.Len(t, ch.sentFrames(), 1, "re-entrant submit must not produce a second transport call")
}

func TestSubmitAnswer_RejectedBeforeFirstQuestion(t *testing.T) {
	ch := newMockChannel(ChannelConnecting)
	fb := &mockFallback{startReply: &StepReply{Question: "q"}}
	c := newTestCoordinator(t, ch, fb, 50*time.Millisecond)
	c.Start(context.Background())

	assert.ErrorIs(t, c.SubmitAnswer("too early"), ErrSubmissionInProgress)
}

func TestEndSession_PrimaryThenSubmitRejected(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "q"}
	awaitUpdate(t, c, hasQuestion(1))

	require.NoError(t, c.EndSession())
	frames := ch.sentFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, "end", frames[0].Type)

	ch.events <- wire.Event{Type: wire.EventEnd, Message: "Interview completed"}
	u := awaitUpdate(t, c, inState(StateEnded))
	assert.Equal(t, StateEnded, u.State)

	assert.ErrorIs(t, c.SubmitAnswer("late"), ErrSessionClosed)
	assert.Len(t, ch.sentFrames(), 1, "no transport call after Ended")
}

func TestEndSession_Fallback(t *testing.T) {
	ch := newMockChannel(ChannelConnecting)
	fb := &mockFallback{startReply: &StepReply{Question: "q"}}
	c := newTestCoordinator(t, ch, fb, 10*time.Millisecond)
	c.Start(context.Background())
	awaitUpdate(t, c, hasQuestion(1))

	require.NoError(t, c.EndSession())
	awaitUpdate(t, c, inState(StateEnded))

	_, _, end, _ := fb.calls()
	assert.Equal(t, 1, end)
}

func TestFallbackSubmitFailure_RecoverableWithExplicitResubmit(t *testing.T) {
	ch := newMockChannel(ChannelConnecting)
	fb := &mockFallback{
		startReply: &StepReply{Question: "q"},
		submitErr:  &TransportError{Op: "submit-answer", Err: errors.New("timeout")},
	}
	c := newTestCoordinator(t, ch, fb, 10*time.Millisecond)
	c.Start(context.Background())
	awaitUpdate(t, c, hasQuestion(1))

	require.NoError(t, c.SubmitAnswer("first try"))
	u := awaitUpdate(t, c, func(u Update) bool { return u.Err != nil })
	assert.Equal(t, StateAwaitingAnswer, u.State, "a failed fallback submit stays recoverable")

	// The coordinator must not have re-sent; a second call takes an
	// explicit resubmit.
	_, submit, _, _ := fb.calls()
	assert.Equal(t, 1, submit)

	fb.mu.Lock()
	fb.submitErr = nil
	fb.submitReply = &StepReply{Question: "next"}
	fb.mu.Unlock()

	require.NoError(t, c.SubmitAnswer("second try"))
	awaitUpdate(t, c, hasQuestion(2))
	_, submit, _, _ = fb.calls()
	assert.Equal(t, 2, submit)
}

func TestFallbackUnknownSession_Fatal(t *testing.T) {
	ch := newMockChannel(ChannelConnecting)
	fb := &mockFallback{
		startErr: &SessionError{SessionID: "abc", Err: errors.New("not found")},
	}
	c := newTestCoordinator(t, ch, fb, 10*time.Millisecond)
	c.Start(context.Background())

	u := awaitUpdate(t, c, inState(StateErrored))
	var sessErr *SessionError
	assert.ErrorAs(t, u.Err, &sessErr)
}

func TestChannelErrorFrame_Fatal(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventError, Message: "Session not found"}

	u := awaitUpdate(t, c, inState(StateErrored))
	assert.Contains(t, u.Err.Error(), "Session not found")
}

func TestDeleteSession_OnlyAfterEnded(t *testing.T) {
	ch := newMockChannel(ChannelConnecting)
	fb := &mockFallback{startReply: &StepReply{Question: "q"}}
	c := newTestCoordinator(t, ch, fb, 10*time.Millisecond)
	c.Start(context.Background())
	awaitUpdate(t, c, hasQuestion(1))

	err := c.DeleteSession(context.Background())
	assert.Error(t, err, "delete before end must be rejected")

	require.NoError(t, c.EndSession())
	awaitUpdate(t, c, inState(StateEnded))

	require.NoError(t, c.DeleteSession(context.Background()))
	assert.Equal(t, StateDeleted, c.Snapshot().State)

	assert.ErrorIs(t, c.DeleteSession(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, c.SubmitAnswer("x"), ErrSessionClosed)

	_, _, _, del := fb.calls()
	assert.Equal(t, 1, del)
}

func TestChannelLossMidSession_Fatal(t *testing.T) {
	ch := newMockChannel(ChannelOpen)
	fb := &mockFallback{}
	c := newTestCoordinator(t, ch, fb, 30*time.Millisecond)
	c.Start(context.Background())

	ch.events <- wire.Event{Type: wire.EventQuestion, Question: "q"}
	awaitUpdate(t, c, hasQuestion(1))

	ch.mu.Lock()
	ch.state = ChannelClosed
	ch.mu.Unlock()
	close(ch.events)

	u := awaitUpdate(t, c, inState(StateErrored))
	var trErr *TransportError
	assert.ErrorAs(t, u.Err, &trErr)

	start, _, _, _ := fb.calls()
	assert.Zero(t, start, "no mid-session fallback attempt")
}
