// Package upload is the entry screen: it sends a resume to the backend
// and opens an interview session for it.
package upload

import (
	"context"
	"os"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/asengupta/intervo/internal/api"
	"github.com/asengupta/intervo/internal/router"
	"github.com/asengupta/intervo/internal/screen"
	interviewscreen "github.com/asengupta/intervo/internal/screens/interview"
	"github.com/asengupta/intervo/internal/ui/components"
	"github.com/asengupta/intervo/internal/ui/layout"
	"github.com/asengupta/intervo/internal/ui/theme"
)

// uploadDoneMsg is sent when the resume upload completes.
type uploadDoneMsg struct {
	Session *api.Session
	Err     error
}

// UploadScreen collects a resume path and creates a session from it.
type UploadScreen struct {
	client *api.Client
	ivDeps interviewscreen.Deps
	input  components.TextInput
	spin   components.Spinner
	busy   bool
	errMsg string
}

var _ screen.Screen = (*UploadScreen)(nil)
var _ screen.KeyHintProvider = (*UploadScreen)(nil)

// New creates the upload screen.
func New(client *api.Client, ivDeps interviewscreen.Deps) *UploadScreen {
	return &UploadScreen{
		client: client,
		ivDeps: ivDeps,
		input:  components.NewTextInput("Path to your resume (PDF)...", 512),
		spin:   components.NewSpinner(),
	}
}

func (s *UploadScreen) Init() tea.Cmd {
	return tea.Batch(s.input.Init(), s.spin.Init())
}

func (s *UploadScreen) Title() string {
	return "New Interview"
}

func (s *UploadScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Upload"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *UploadScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case uploadDoneMsg:
		s.busy = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			s.input.Submit(false)
			return s, nil
		}
		return s, func() tea.Msg {
			return router.PushScreenMsg{
				Screen: interviewscreen.New(msg.Session, s.ivDeps),
			}
		}

	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		if msg.String() == "enter" {
			return s.startUpload()
		}
		s.errMsg = ""
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}

	var cmd tea.Cmd
	s.spin, cmd = s.spin.Update(msg)
	return s, cmd
}

func (s *UploadScreen) startUpload() (screen.Screen, tea.Cmd) {
	path := strings.TrimSpace(s.input.Value())
	if path == "" {
		s.errMsg = "enter the path to a resume file"
		return s, nil
	}
	if _, err := os.Stat(path); err != nil {
		s.errMsg = "cannot read " + path
		s.input.Submit(false)
		return s, nil
	}

	s.busy = true
	s.errMsg = ""
	return s, func() tea.Msg {
		sess, err := s.client.UploadResume(context.Background(), path)
		return uploadDoneMsg{Session: sess, Err: err}
	}
}

func (s *UploadScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString("\n\n")

	b.WriteString(theme.Title.Width(width).Render("Intervo"))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Width(width).Render("Mock interviews tailored to your resume"))
	b.WriteString("\n\n\n")

	if s.busy {
		b.WriteString(lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.TextDim).
			Render(s.spin.View() + " Uploading resume and preparing questions..."))
		return b.String()
	}

	prompt := theme.Body.Render("Resume: ") + s.input.View()
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, prompt))
	b.WriteString("\n\n")

	if s.errMsg != "" {
		b.WriteString(lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.Error).
			Render(s.errMsg))
	} else {
		b.WriteString(theme.Hint.Width(width).Align(lipgloss.Center).
			Render("The backend reads your resume and picks a role to interview for."))
	}

	return b.String()
}
