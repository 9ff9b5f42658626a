// Package results displays the scorecard after an interview ends.
package results

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/asengupta/intervo/internal/api"
	"github.com/asengupta/intervo/internal/router"
	"github.com/asengupta/intervo/internal/screen"
	"github.com/asengupta/intervo/internal/ui/layout"
	"github.com/asengupta/intervo/internal/ui/theme"
	"github.com/asengupta/intervo/internal/wire"
)

// SessionDeleter discards a finished session's record on the backend.
type SessionDeleter interface {
	DeleteSession(ctx context.Context) error
}

// scorecardMsg is sent when the scorecard fetch completes.
type scorecardMsg struct {
	Scorecard *api.Scorecard
	Err       error
}

// deletedMsg is sent when the session delete completes.
type deletedMsg struct {
	Err error
}

// ResultsScreen shows the overall score and per-question evaluations.
type ResultsScreen struct {
	client    *api.Client
	deleter   SessionDeleter
	sessionID string

	scorecard *api.Scorecard
	errMsg    string
	deleted   bool
	selected  int
}

var _ screen.Screen = (*ResultsScreen)(nil)
var _ screen.KeyHintProvider = (*ResultsScreen)(nil)

// New creates a ResultsScreen for an ended session.
func New(client *api.Client, deleter SessionDeleter, sessionID string) *ResultsScreen {
	return &ResultsScreen{
		client:    client,
		deleter:   deleter,
		sessionID: sessionID,
	}
}

func (s *ResultsScreen) Init() tea.Cmd {
	return s.fetchScorecard()
}

func (s *ResultsScreen) Title() string {
	return "Scorecard"
}

func (s *ResultsScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{
		{Key: "↑↓", Description: "Scroll"},
		{Key: "Enter", Description: "New interview"},
	}
	if !s.deleted {
		hints = append(hints, layout.KeyHint{Key: "D", Description: "Delete session"})
	}
	return append(hints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
}

func (s *ResultsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case scorecardMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.scorecard = msg.Scorecard
		return s, nil

	case deletedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.deleted = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "d", "D":
			if !s.deleted {
				return s, s.deleteSession()
			}
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.scorecard != nil && s.selected < len(s.scorecard.Evaluations)-1 {
				s.selected++
			}
		}
	}
	return s, nil
}

func (s *ResultsScreen) fetchScorecard() tea.Cmd {
	return func() tea.Msg {
		sc, err := s.client.Scorecard(context.Background(), s.sessionID)
		return scorecardMsg{Scorecard: sc, Err: err}
	}
}

func (s *ResultsScreen) deleteSession() tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{Err: s.deleter.DeleteSession(context.Background())}
	}
}

func (s *ResultsScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.Error).
			Render(fmt.Sprintf("\n\n\n  Error: %s\n\n  Press Enter to go back.", s.errMsg))
	}
	if s.scorecard == nil {
		return lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.TextDim).
			Render("\n\n\n  Fetching your scorecard...")
	}

	sc := s.scorecard
	var b strings.Builder

	b.WriteString(theme.Title.Width(width).Render("Interview complete"))
	b.WriteString("\n")
	if sc.Role != "" {
		b.WriteString(theme.Subtitle.Width(width).Render(sc.Role))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	overall := theme.ScoreStyle(int(sc.OverallScore + 0.5)).
		Render(fmt.Sprintf("%.1f/10", sc.OverallScore))
	summary := theme.Body.Render(fmt.Sprintf("Overall %s across %d questions", overall, sc.TotalQuestions))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, summary))
	b.WriteString("\n\n")

	if s.deleted {
		b.WriteString(lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.Warning).
			Render("Session record deleted from the server."))
		b.WriteString("\n\n")
	}

	for i, ev := range sc.Evaluations {
		b.WriteString(s.renderEvaluation(i, ev, width))
		b.WriteString("\n")
	}

	return b.String()
}

func (s *ResultsScreen) renderEvaluation(i int, ev wire.Evaluation, width int) string {
	var b strings.Builder

	marker := "  "
	if i == s.selected {
		marker = "> "
	}

	score := theme.ScoreStyle(ev.Score).Render(fmt.Sprintf("%d/10", ev.Score))
	head := fmt.Sprintf("%sQ%d  %s  %s", marker, i+1, score, truncate(ev.Question, width-20))
	if i == s.selected {
		b.WriteString(theme.Selected.Render(head))
	} else {
		b.WriteString(theme.Unselected.Render(head))
	}

	if i == s.selected {
		detail := strings.TrimSpace(
			theme.Body.Render("Your answer: "+ev.HumanAnswer) + "\n" +
				theme.Body.Render(ev.Reason) + "\n" +
				theme.Hint.Render("Strong answer: "+ev.IdealAnswer))
		card := theme.Card.Width(min(width-8, 76)).Render(detail)
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, card))
	}

	return b.String()
}

func truncate(s string, limit int) string {
	if limit < 10 {
		limit = 10
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
