package interview

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	session "github.com/asengupta/intervo/internal/interview"
	"github.com/asengupta/intervo/internal/ui/theme"
)

func (s *InterviewScreen) View(width, height int) string {
	if s.confirmingEnd {
		return renderEndConfirm(width)
	}

	switch s.last.State {
	case session.StateErrored:
		return renderFatal(width, s.last.Err)
	case session.StateInitializing, session.StateAwaitingTransport:
		return s.renderWaiting(width, "Contacting interviewer...")
	case session.StateAwaitingFirstQuestion:
		return s.renderWaiting(width, "Waiting for the first question...")
	}

	return s.renderQuestionView(width, height)
}

// renderQuestionView renders the current question, the previous answer's
// evaluation, and the answer composer.
func (s *InterviewScreen) renderQuestionView(width, height int) string {
	var b strings.Builder

	q := s.last.Question
	if q != nil {
		label := lipgloss.NewStyle().
			Foreground(theme.Secondary).
			Bold(true).
			Render(fmt.Sprintf("  Question %d", q.Ordinal))
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
		b.WriteString("\n\n")

		question := lipgloss.NewStyle().
			Width(min(width-8, 76)).
			Foreground(theme.Text).
			Bold(true).
			Render(q.Content)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, question))
		b.WriteString("\n\n")
	}

	if ev := s.last.Evaluation; ev != nil {
		b.WriteString(s.renderEvaluation(ev, width))
		b.WriteString("\n")
	}

	if s.submitErr != "" {
		b.WriteString(lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.Warning).
			Render(s.submitErr))
		b.WriteString("\n\n")
	}

	if s.last.State == session.StateAwaitingAnswer {
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, s.answer.View()))
	} else {
		b.WriteString(lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.TextDim).
			Render(s.spin.View() + " Evaluating your answer..."))
	}

	return b.String()
}

// renderEvaluation renders the scored feedback for the previous answer.
func (s *InterviewScreen) renderEvaluation(ev *session.Evaluation, width int) string {
	var b strings.Builder

	score := theme.ScoreStyle(ev.Score).Render(fmt.Sprintf("%d/10", ev.Score))
	b.WriteString(theme.Body.Render(fmt.Sprintf("Answer %d scored ", ev.Ordinal)) + score)
	b.WriteString("\n\n")

	if ev.Feedback != "" {
		b.WriteString(theme.Body.Render(ev.Feedback))
		b.WriteString("\n")
	}
	if ev.IdealAnswer != "" {
		b.WriteString(theme.Hint.Render("Strong answer: " + ev.IdealAnswer))
		b.WriteString("\n")
	}

	card := theme.Card.Width(min(width-8, 76)).Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, card)
}

func (s *InterviewScreen) renderWaiting(width int, msg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render("\n\n\n" + s.spin.View() + " " + msg)
}

// renderEndConfirm renders the end-interview confirmation dialog.
func renderEndConfirm(width int) string {
	var b strings.Builder
	b.WriteString("\n\n\n")

	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Bold(true).
		Render("End the interview?"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render("Your scorecard will be available after ending."))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Success).
		Render("[Y] Yes, end interview"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Primary).
		Render("[N] No, keep going"))

	return b.String()
}

// renderFatal renders an unrecoverable session failure.
func renderFatal(width int, err error) string {
	msg := "the session failed"
	if err != nil {
		msg = err.Error()
	}
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Error).
		Render(fmt.Sprintf("\n\n\n  Interview error: %s\n\n  Press any key to go back.", msg))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
