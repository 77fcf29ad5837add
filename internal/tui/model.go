// Package tui is the terminal front-end: a chat pane over a chat.Session
// and a ticket board over a ticket.Collection.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/h1v3-io/helpdesk/internal/chat"
	"github.com/h1v3-io/helpdesk/internal/logbuf"
	"github.com/h1v3-io/helpdesk/internal/ticket"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

type pane int

const (
	chatPane pane = iota
	boardPane
)

// Header and footer rows around the pane body.
const chromeHeight = 4

// Options configures a Model.
type Options struct {
	Session *chat.Session
	Tickets *ticket.Collection
	// Logs, if set, backs the /logs command.
	Logs *logbuf.Buffer
	// KB, if set, backs the /kb command, returning up to KBLimit articles.
	KB      KBSearcher
	KBLimit int
	// Context bounds backend calls. Defaults to context.Background.
	Context context.Context
}

// KBSearcher answers /kb lookups.
type KBSearcher interface {
	SearchKB(ctx context.Context, query string, limit int) ([]protocol.KBArticle, error)
}

// changedMsg is delivered when the session or collection reports a change.
type changedMsg struct{}

type sentMsg struct{}

type resolvedMsg struct {
	id  string
	err error
}

type refreshedMsg struct{ err error }

type kbResultMsg struct {
	query    string
	articles []protocol.KBArticle
	err      error
}

// Model is the Bubble Tea model of the help desk UI.
type Model struct {
	ctx     context.Context
	session *chat.Session
	tickets *ticket.Collection
	logs    *logbuf.Buffer
	kb      KBSearcher
	kbLimit int

	pane          pane
	width, height int

	input      textinput.Model
	search     textinput.Model
	searching  bool
	transcript viewport.Model
	spin       spinner.Model
	help       help.Model

	filter ticket.Filter
	cursor int
	notes  []string
	notice string
}

// New creates the model. Call Run to drive it with live change
// notifications.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.KBLimit < 1 {
		opts.KBLimit = 3
	}

	in := textinput.New()
	in.Placeholder = "Describe your IT issue, or /help"
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	search := textinput.New()
	search.Placeholder = "search subject or description"
	search.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = refStyle

	m := Model{
		ctx:        ctx,
		session:    opts.Session,
		tickets:    opts.Tickets,
		logs:       opts.Logs,
		kb:         opts.KB,
		kbLimit:    opts.KBLimit,
		input:      in,
		search:     search,
		transcript: viewport.New(80, 20),
		spin:       sp,
		help:       help.New(),
		filter:     ticket.Filter{Status: ticket.All, Category: ticket.All},
	}
	m.syncTranscript()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, m.refresh())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.transcript.Width = msg.Width
		m.transcript.Height = max(msg.Height-chromeHeight-1, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.search.Width = max(msg.Width/2, 10)
		m.help.Width = msg.Width
		m.syncTranscript()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		if key.Matches(msg, keys.NextPane) && !m.searching {
			return m.switchPane()
		}
		if m.pane == chatPane {
			return m.updateChat(msg)
		}
		return m.updateBoard(msg)

	case changedMsg, sentMsg:
		m.syncInput()
		m.syncTranscript()
		m.clampCursor()
		return m, nil

	case resolvedMsg:
		if msg.err != nil {
			m.notice = errorStyle.Render(fmt.Sprintf("resolve #%s failed: %v", protocol.ShortID(msg.id), msg.err))
		} else {
			m.notice = fmt.Sprintf("Ticket #%s resolved", protocol.ShortID(msg.id))
		}
		m.clampCursor()
		return m, nil

	case refreshedMsg:
		if msg.err != nil {
			m.notice = errorStyle.Render("refresh failed: " + msg.err.Error())
		}
		m.clampCursor()
		return m, nil

	case kbResultMsg:
		m.notes = append(m.notes, kbLines(msg)...)
		m.syncTranscript()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) switchPane() (tea.Model, tea.Cmd) {
	m.notice = ""
	if m.pane == chatPane {
		m.pane = boardPane
		m.input.Blur()
		return m, nil
	}
	m.pane = chatPane
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	if m.pane == chatPane {
		b.WriteString(m.transcript.View())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	} else {
		b.WriteString(m.boardView())
	}
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(m.notice)
	}
	b.WriteString("\n")
	bindings := keys.chatHelp()
	if m.pane == boardPane {
		bindings = keys.boardHelp()
	}
	b.WriteString(m.help.ShortHelpView(bindings))
	return b.String()
}

func (m Model) header() string {
	chatTab, boardTab := activeTabStyle, tabStyle
	if m.pane == boardPane {
		chatTab, boardTab = tabStyle, activeTabStyle
	}
	parts := []string{
		titleStyle.Render("POWERGRID IT Support"),
		chatTab.Render("Chat"),
		boardTab.Render("Tickets"),
		dimStyle.Render(m.session.Employee()),
	}
	if m.session.Busy() || m.tickets.Loading() {
		parts = append(parts, m.spin.View())
	}
	return strings.Join(parts, " ")
}
