package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/h1v3-io/helpdesk/internal/chat"
	"github.com/h1v3-io/helpdesk/internal/logbuf"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

const defaultLogLines = 20

const replHelp = `Commands:
  /kb <words> search the knowledge base
  /logs [n]   show the last n log records (default 20)
  /tickets    open the ticket board
  /clear      clear command output
  /quit       leave
Anything else is sent to the assistant.`

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if strings.HasPrefix(text, "/") {
			m.input.SetValue("")
			m.session.SetInput("")
			return m.command(text)
		}
		if m.session.Busy() {
			m.notice = dimStyle.Render("Waiting for the previous reply…")
			return m, nil
		}
		m.notice = ""
		return m, sendCmd(m.ctx, m.session)

	case msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.session.Input() {
		m.session.SetInput(v)
	}
	return m, cmd
}

// sendCmd sends the session's composer input. Send clears it, and the
// change reaches the text field through syncInput.
func sendCmd(ctx context.Context, s *chat.Session) tea.Cmd {
	return func() tea.Msg {
		s.SendInput(ctx)
		return sentMsg{}
	}
}

// syncInput copies the session's composer input into the text field.
func (m *Model) syncInput() {
	if v := m.session.Input(); v != m.input.Value() {
		m.input.SetValue(v)
	}
}

// command runs a REPL command typed into the composer. Commands never reach
// the backend.
func (m Model) command(text string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(text, " ")
	switch name {
	case "/logs":
		m.notes = append(m.notes, m.logLines(strings.TrimSpace(arg))...)
	case "/kb":
		query := strings.TrimSpace(arg)
		switch {
		case m.kb == nil:
			m.notes = append(m.notes, dimStyle.Render("knowledge base search is not enabled"))
		case query == "":
			m.notes = append(m.notes, errorStyle.Render("usage: /kb <words>"))
		default:
			m.syncTranscript()
			return m, kbCmd(m.ctx, m.kb, query, m.kbLimit)
		}
	case "/tickets":
		m.syncTranscript()
		return m.switchPane()
	case "/clear":
		m.notes = nil
	case "/quit", "/exit":
		return m, tea.Quit
	case "/help":
		m.notes = append(m.notes, replHelp)
	default:
		m.notes = append(m.notes, errorStyle.Render("unknown command "+name+", try /help"))
	}
	m.syncTranscript()
	return m, nil
}

func kbCmd(ctx context.Context, src KBSearcher, query string, limit int) tea.Cmd {
	return func() tea.Msg {
		articles, err := src.SearchKB(ctx, query, limit)
		return kbResultMsg{query: query, articles: articles, err: err}
	}
}

func kbLines(res kbResultMsg) []string {
	if res.err != nil {
		return []string{errorStyle.Render("kb search failed: " + res.err.Error())}
	}
	if len(res.articles) == 0 {
		return []string{dimStyle.Render(fmt.Sprintf("no articles match %q", res.query))}
	}
	lines := []string{dimStyle.Render(fmt.Sprintf("── knowledge base: %s ──", res.query))}
	for _, a := range res.articles {
		line := "• " + a.Title
		if label := a.MatchLabel(); label != "" {
			line += " (" + label + ")"
		}
		lines = append(lines, kbStyle.Render(line), dimStyle.Render("  kb:"+a.ID))
	}
	return lines
}

func (m Model) logLines(arg string) []string {
	if m.logs == nil {
		return []string{dimStyle.Render("log capture is not enabled")}
	}
	n := defaultLogLines
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return []string{errorStyle.Render("usage: /logs [n]")}
		}
		n = v
	}
	entries := m.logs.Query(logbuf.Filter{MinLevel: slog.LevelDebug, Limit: n})
	if len(entries) == 0 {
		return []string{dimStyle.Render("no log records yet")}
	}
	lines := []string{dimStyle.Render(fmt.Sprintf("── last %d log records ──", len(entries)))}
	for _, e := range entries {
		line := e.String()
		if e.Level >= slog.LevelWarn {
			line = errorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

// syncTranscript re-renders the session log into the viewport and scrolls
// to the newest message.
func (m *Model) syncTranscript() {
	width := max(m.transcript.Width-2, 20)
	var blocks []string
	for _, msg := range m.session.Messages() {
		blocks = append(blocks, renderMessage(msg, width))
	}
	if m.session.Busy() {
		blocks = append(blocks, dimStyle.Render("Assistant is typing…"))
	}
	if len(m.notes) > 0 {
		blocks = append(blocks, strings.Join(m.notes, "\n"))
	}
	m.transcript.SetContent(strings.Join(blocks, "\n\n"))
	m.transcript.GotoBottom()
}

func renderMessage(msg chat.Message, width int) string {
	label := assistantStyle.Render("Assistant")
	if msg.Role == chat.RoleUser {
		label = userStyle.Render("You")
	}
	lines := []string{
		label + " " + dimStyle.Render(msg.CreatedAt.Format("15:04")),
		lipgloss.NewStyle().Width(width).Render(msg.Content),
	}
	if msg.TicketRef != "" {
		lines = append(lines, refStyle.Render("Ticket #"+protocol.ShortID(msg.TicketRef)))
	}
	for _, a := range msg.KBSuggestions {
		line := "  • " + a.Title
		if label := a.MatchLabel(); label != "" {
			line += " (" + label + ")"
		}
		lines = append(lines, kbStyle.Render(line))
	}
	return strings.Join(lines, "\n")
}
