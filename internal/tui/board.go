package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/h1v3-io/helpdesk/internal/ticket"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		if key.Matches(msg, keys.Escape) || msg.Type == tea.KeyEnter {
			m.searching = false
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.filter.SearchText = strings.TrimSpace(m.search.Value())
		m.clampCursor()
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		m.cursor++
		m.clampCursor()
	case key.Matches(msg, keys.Status):
		m.filter.Status = next(ticket.StatusOptions, m.filter.Status)
		m.cursor = 0
		return m, m.refresh()
	case key.Matches(msg, keys.Category):
		m.filter.Category = next(ticket.CategoryOptions, m.filter.Category)
		m.cursor = 0
		return m, m.refresh()
	case key.Matches(msg, keys.Search):
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, keys.Escape):
		m.search.SetValue("")
		m.filter.SearchText = ""
	case key.Matches(msg, keys.Refresh):
		m.notice = ""
		return m, m.refresh()
	case key.Matches(msg, keys.Resolve):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		if t.Status == protocol.TicketResolved {
			m.notice = fmt.Sprintf("Ticket #%s is already resolved", protocol.ShortID(t.ID))
			return m, nil
		}
		if m.tickets.Pending(t.ID) {
			return m, nil
		}
		m.notice = fmt.Sprintf("Resolving #%s…", protocol.ShortID(t.ID))
		return m, resolveCmd(m.ctx, m.tickets, t.ID)
	}
	return m, nil
}

// refresh fetches the employee's tickets with the current server-side
// filters. Search text is applied locally by Visible.
func (m Model) refresh() tea.Cmd {
	c, ctx := m.tickets, m.ctx
	q := m.filter.ServerQuery(m.session.Employee())
	return func() tea.Msg {
		return refreshedMsg{err: c.Refresh(ctx, q)}
	}
}

func resolveCmd(ctx context.Context, c *ticket.Collection, id string) tea.Cmd {
	return func() tea.Msg {
		return resolvedMsg{id: id, err: c.Resolve(ctx, id)}
	}
}

func (m Model) visible() []protocol.Ticket {
	return m.tickets.Visible(m.filter)
}

func (m Model) selected() (protocol.Ticket, bool) {
	v := m.visible()
	if m.cursor < 0 || m.cursor >= len(v) {
		return protocol.Ticket{}, false
	}
	return v[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) boardView() string {
	var b strings.Builder

	st := m.tickets.Stats()
	fmt.Fprintf(&b, "%s  open %d · in progress %d · resolved %d · total %d\n",
		titleStyle.Render("My tickets"), st.Open, st.InProgress, st.Resolved, st.Total)

	searchView := dimStyle.Render("/ to search")
	if m.searching || m.filter.SearchText != "" {
		searchView = m.search.View()
	}
	fmt.Fprintf(&b, "status %s · category %s · %s\n\n",
		refStyle.Render(m.filter.Status), refStyle.Render(m.filter.Category), searchView)

	visible := m.visible()
	switch {
	case len(visible) == 0 && m.tickets.Loading():
		b.WriteString(dimStyle.Render("Loading tickets…"))
	case len(visible) == 0 && m.tickets.LastError() != nil:
		b.WriteString(errorStyle.Render("Could not load tickets: " + m.tickets.LastError().Error()))
	case len(visible) == 0:
		b.WriteString(dimStyle.Render("No tickets match."))
	default:
		b.WriteString(m.ticketRows(visible))
	}

	if t, ok := m.selected(); ok {
		b.WriteString("\n\n")
		b.WriteString(ticketDetail(t))
	}
	return b.String()
}

func (m Model) ticketRows(visible []protocol.Ticket) string {
	rows := max(m.height-chromeHeight-12, 5)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(visible))

	var lines []string
	for i := start; i < end; i++ {
		t := visible[i]
		marker := "  "
		if m.tickets.Pending(t.ID) {
			marker = "⏳"
		}
		prio := priorityStyles[string(t.Priority)].Render(fmt.Sprintf("%-6s", t.Priority))
		line := fmt.Sprintf("%s #%s %s %-11s %-8s %s",
			marker, protocol.ShortID(t.ID), prio, t.Status, t.Category, t.Subject)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(visible) {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  … %d more", len(visible)-end)))
	}
	return strings.Join(lines, "\n")
}

func ticketDetail(t protocol.Ticket) string {
	team := t.Team()
	if team == "" {
		team = "unassigned"
	}
	return dimStyle.Render(fmt.Sprintf("#%s · %s · %s · opened %s\n%s",
		t.ID, t.Employee, team, t.CreatedAt.Local().Format("2006-01-02 15:04"), t.Description))
}

// next returns the option after cur, wrapping around.
func next(options []string, cur string) string {
	i := slices.Index(options, cur)
	return options[(i+1)%len(options)]
}
