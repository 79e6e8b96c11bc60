package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sameerkhansf/vapi-takehome/domain/entities"
	"github.com/sameerkhansf/vapi-takehome/internal/client"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
)

const visibleMessages = 12

// pipeline is the part of client.Controller the UI drives.
type pipeline interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	Dismiss() bool
	ClearConversation() int
	State() client.State
}

type (
	stateMsg   client.State
	messageMsg entities.ConversationMessage
	errorMsg   *voiceerr.Error
	noticeMsg  string
	clearedMsg int
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	helpStyle      = lipgloss.NewStyle().Faint(true)

	stateStyles = map[client.State]lipgloss.Style{
		client.StateIdle:         lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		client.StateRecording:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		client.StateTranscribing: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		client.StateProcessing:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		client.StateSynthesizing: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		client.StatePlaying:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		client.StateError:        errorStyle,
	}
)

type model struct {
	ctx      context.Context
	pipeline pipeline
	clientID string

	state    client.State
	messages []entities.ConversationMessage
	err      *voiceerr.Error
	notice   string
}

func newModel(ctx context.Context, p pipeline, clientID string) model {
	return model{ctx: ctx, pipeline: p, clientID: clientID, state: p.State()}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "enter":
			m.notice = ""
			return m, m.toggle()
		case "d":
			return m, m.dismiss()
		case "c":
			return m, m.clear()
		}

	case stateMsg:
		m.state = client.State(msg)
		if m.state != client.StateError {
			m.err = nil
		}

	case messageMsg:
		m.messages = append(m.messages, entities.ConversationMessage(msg))

	case errorMsg:
		m.err = msg

	case noticeMsg:
		m.notice = string(msg)

	case clearedMsg:
		m.messages = nil
		m.notice = fmt.Sprintf("Cleared %d messages.", int(msg))
	}
	return m, nil
}

// toggle must not run inside Update: controller callbacks send into the
// program and would block.
func (m model) toggle() tea.Cmd {
	p, ctx := m.pipeline, m.ctx
	return func() tea.Msg {
		switch p.State() {
		case client.StateRecording:
			return noticeFor(p.StopRecording(ctx))
		case client.StateError:
			p.Dismiss()
		}
		return noticeFor(p.StartRecording(ctx))
	}
}

func (m model) dismiss() tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		p.Dismiss()
		return nil
	}
}

func (m model) clear() tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		return clearedMsg(p.ClearConversation())
	}
}

// noticeFor turns refusals into a status line. Classified errors are already
// shown through the error callback.
func noticeFor(err error) tea.Msg {
	var verr *voiceerr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		return nil
	case errors.Is(err, client.ErrBusy):
		return noticeMsg("Still working on the last message...")
	default:
		return noticeMsg(err.Error())
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Voice Assistant"))
	b.WriteString(helpStyle.Render("  " + m.clientID))
	b.WriteString("\n\n")

	start := 0
	if len(m.messages) > visibleMessages {
		start = len(m.messages) - visibleMessages
	}
	for _, msg := range m.messages[start:] {
		if msg.Role == entities.MessageRoleUser {
			b.WriteString(userStyle.Render("You: "))
		} else {
			b.WriteString(assistantStyle.Render("Assistant: "))
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	if len(m.messages) == 0 {
		b.WriteString(helpStyle.Render("Press space and start talking."))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	style, ok := stateStyles[m.state]
	if !ok {
		style = lipgloss.NewStyle()
	}
	b.WriteString("State: ")
	b.WriteString(style.Render(m.state.String()))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%s (%s)", m.err.Message, m.err.Code)))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(helpText(m.state)))
	b.WriteString("\n")
	return b.String()
}

func helpText(s client.State) string {
	switch s {
	case client.StateRecording:
		return "space: stop and send • q: quit"
	case client.StateError:
		return "space: dismiss and record • d: dismiss • q: quit"
	default:
		return "space: record • c: clear • q: quit"
	}
}
