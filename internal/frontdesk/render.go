package frontdesk

import (
	"fmt"
	"strings"

	"github.com/h1v3-io/helpdesk/internal/chat"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// Render formats an assistant message as Markdown for chat platforms.
func Render(m chat.Message) string {
	var b strings.Builder
	b.WriteString(m.Content)
	if m.TicketRef != "" {
		fmt.Fprintf(&b, "\n\n**Ticket:** `#%s`", protocol.ShortID(m.TicketRef))
	}
	if len(m.KBSuggestions) > 0 {
		b.WriteString("\n\n**Related articles:**")
		for _, a := range m.KBSuggestions {
			fmt.Fprintf(&b, "\n- %s", a.Title)
			if label := a.MatchLabel(); label != "" {
				fmt.Fprintf(&b, " (%s)", label)
			}
		}
	}
	return b.String()
}

// RenderTickets formats a ticket list, one line per ticket.
func RenderTickets(tickets []protocol.Ticket) string {
	if len(tickets) == 0 {
		return "You have no open tickets."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Your open tickets (%d):**", len(tickets))
	for _, t := range tickets {
		fmt.Fprintf(&b, "\n- `#%s` %s · %s · %s priority · %s",
			protocol.ShortID(t.ID), t.Subject, strings.ReplaceAll(string(t.Status), "_", " "), t.Priority, t.Team())
	}
	return b.String()
}

// RenderArticles formats knowledge-base search results.
func RenderArticles(query string, articles []protocol.KBArticle) string {
	if len(articles) == 0 {
		return fmt.Sprintf("No knowledge-base articles match %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Knowledge base: %s**", query)
	for _, a := range articles {
		fmt.Fprintf(&b, "\n- **%s**", a.Title)
		if label := a.MatchLabel(); label != "" {
			fmt.Fprintf(&b, " (%s)", label)
		}
		if summary := firstLine(a.Content); summary != "" {
			b.WriteString("\n  " + summary)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 160 {
		line = string(r[:157]) + "..."
	}
	return line
}
