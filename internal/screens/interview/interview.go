package interview

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/asengupta/intervo/internal/api"
	session "github.com/asengupta/intervo/internal/interview"
	"github.com/asengupta/intervo/internal/router"
	"github.com/asengupta/intervo/internal/screen"
	"github.com/asengupta/intervo/internal/screens/results"
	"github.com/asengupta/intervo/internal/ui/components"
	"github.com/asengupta/intervo/internal/ui/layout"
	"github.com/asengupta/intervo/internal/ui/theme"
	"github.com/asengupta/intervo/internal/ws"
)

const answerCharLimit = 4000

// Coordinator is the slice of the session coordinator this screen drives.
type Coordinator interface {
	Start(ctx context.Context)
	Updates() <-chan session.Update
	SubmitAnswer(text string) error
	EndSession() error
	DeleteSession(ctx context.Context) error
	SessionID() string
	Close() error
}

// Deps carries everything needed to run an interview session.
type Deps struct {
	Client      *api.Client
	ChannelURL  string
	Grace       time.Duration
	CallTimeout time.Duration
	Tracer      session.Tracer
}

// InterviewScreen drives an interview session end to end.
type InterviewScreen struct {
	deps    Deps
	session *api.Session
	coord   Coordinator

	answer components.TextArea
	spin   components.Spinner

	last          session.Update
	started       bool
	confirmingEnd bool
	submitErr     string
	width         int
	height        int
}

var _ screen.Screen = (*InterviewScreen)(nil)
var _ screen.KeyHintProvider = (*InterviewScreen)(nil)
var _ screen.StatusProvider = (*InterviewScreen)(nil)

// New creates an InterviewScreen for an uploaded session. The coordinator
// is built on first Init so a screen is cheap to construct.
func New(sess *api.Session, deps Deps) *InterviewScreen {
	return &InterviewScreen{
		deps:    deps,
		session: sess,
		answer:  components.NewTextArea("Type your answer. Ctrl+S submits.", answerCharLimit),
		spin:    components.NewSpinner(),
	}
}

// newWithCoordinator wires a prebuilt coordinator, used by tests.
func newWithCoordinator(sess *api.Session, coord Coordinator) *InterviewScreen {
	s := New(sess, Deps{})
	s.coord = coord
	return s
}

func (s *InterviewScreen) Init() tea.Cmd {
	if s.coord == nil {
		coord, err := session.New(session.Config{
			SessionID:   s.session.ID,
			Channel:     ws.NewChannel(s.deps.ChannelURL),
			Fallback:    s.deps.Client,
			Grace:       s.deps.Grace,
			CallTimeout: s.deps.CallTimeout,
			Tracer:      s.deps.Tracer,
		})
		if err != nil {
			s.submitErr = err.Error()
			return nil
		}
		s.coord = coord
	}

	if !s.started {
		s.started = true
		s.coord.Start(context.Background())
	}

	return tea.Batch(
		s.waitForUpdate(),
		s.spin.Init(),
		s.answer.Init(),
	)
}

func (s *InterviewScreen) Title() string {
	if s.session != nil && s.session.Role != "" {
		return "Interview · " + s.session.Role
	}
	return "Interview"
}

func (s *InterviewScreen) HeaderStatus() layout.HeaderStatus {
	status := layout.HeaderStatus{SessionID: s.session.ID}
	switch {
	case s.last.State == session.StateErrored:
		status.Label = "failed"
		status.Style = theme.Failed
	case s.last.Transport == session.TransportPrimary:
		status.Label = "live"
		status.Style = theme.Live
	case s.last.Transport == session.TransportFallback:
		status.Label = "fallback"
		status.Style = theme.Degraded
	default:
		status.Label = "connecting"
		status.Style = theme.Hint
	}
	return status
}

func (s *InterviewScreen) KeyHints() []layout.KeyHint {
	if s.confirmingEnd {
		return []layout.KeyHint{
			{Key: "Y", Description: "End interview"},
			{Key: "N", Description: "Keep going"},
		}
	}
	if s.last.State == session.StateAwaitingAnswer {
		return []layout.KeyHint{
			{Key: "Ctrl+S", Description: "Submit answer"},
			{Key: "Esc", Description: "End interview"},
		}
	}
	return []layout.KeyHint{
		{Key: "Esc", Description: "End interview"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *InterviewScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.answer.Resize(answerWidth(msg.Width), answerHeight(msg.Height))
		return s, nil

	case sessionUpdateMsg:
		return s.handleUpdate(msg)

	case submitRejectedMsg:
		s.submitErr = msg.Err.Error()
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.spin, cmd = s.spin.Update(msg)
	return s, cmd
}

func (s *InterviewScreen) handleUpdate(msg sessionUpdateMsg) (screen.Screen, tea.Cmd) {
	if msg.Closed {
		return s, nil
	}

	prev := s.last
	s.last = msg.Update

	// A recoverable submission failure surfaces inline; the answer text is
	// preserved so it can be resubmitted.
	if msg.Update.Err != nil && msg.Update.State != session.StateErrored {
		s.submitErr = msg.Update.Err.Error()
	} else {
		s.submitErr = ""
	}

	// Clear the composer when a new question arrives.
	if msg.Update.Question != nil &&
		(prev.Question == nil || msg.Update.Question.Ordinal != prev.Question.Ordinal) {
		s.answer.Reset()
	}

	if msg.Update.State == session.StateEnded {
		_ = s.coord.Close()
		return s, func() tea.Msg {
			return router.ReplaceScreenMsg{
				Screen: results.New(s.deps.Client, s.coord, s.session.ID),
			}
		}
	}

	return s, s.waitForUpdate()
}

func (s *InterviewScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.last.State == session.StateErrored {
		_ = s.coord.Close()
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}

	if s.confirmingEnd {
		switch key {
		case "y", "Y":
			s.confirmingEnd = false
			if err := s.coord.EndSession(); err != nil {
				return s, func() tea.Msg { return submitRejectedMsg{Err: err} }
			}
			return s, nil
		case "n", "N", "esc":
			s.confirmingEnd = false
			return s, nil
		}
		return s, nil
	}

	switch key {
	case "esc":
		if !s.last.State.Terminal() {
			s.confirmingEnd = true
		}
		return s, nil
	case "ctrl+s":
		return s.submitAnswer()
	}

	if s.last.State == session.StateAwaitingAnswer {
		var cmd tea.Cmd
		s.answer, cmd = s.answer.Update(msg)
		return s, cmd
	}

	return s, nil
}

func (s *InterviewScreen) submitAnswer() (screen.Screen, tea.Cmd) {
	if err := s.coord.SubmitAnswer(s.answer.Value()); err != nil {
		return s, func() tea.Msg { return submitRejectedMsg{Err: err} }
	}
	s.submitErr = ""
	return s, nil
}

// waitForUpdate blocks on the coordinator's update stream as a command,
// re-armed after each delivery.
func (s *InterviewScreen) waitForUpdate() tea.Cmd {
	updates := s.coord.Updates()
	return func() tea.Msg {
		u, ok := <-updates
		return sessionUpdateMsg{Update: u, Closed: !ok}
	}
}

func answerWidth(total int) int {
	w := total - 8
	if w > 76 {
		w = 76
	}
	if w < 20 {
		w = 20
	}
	return w
}

func answerHeight(total int) int {
	h := total / 4
	if h < 3 {
		h = 3
	}
	if h > 8 {
		h = 8
	}
	return h
}
