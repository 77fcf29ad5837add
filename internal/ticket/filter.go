package ticket

import (
	"strings"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// All disables a status or category predicate.
const All = "all"

// Filter is the local view configuration over a ticket list. Empty Status or
// Category behave like All.
type Filter struct {
	Status     string // All or a protocol.TicketStatus
	Category   string // All or a protocol.TicketCategory
	SearchText string
}

// Match reports whether t passes every predicate of f.
func (f Filter) Match(t protocol.Ticket) bool {
	if f.Status != "" && f.Status != All && protocol.TicketStatus(f.Status) != t.Status {
		return false
	}
	if f.Category != "" && f.Category != All && protocol.TicketCategory(f.Category) != t.Category {
		return false
	}
	if f.SearchText == "" {
		return true
	}
	needle := strings.ToLower(f.SearchText)
	return strings.Contains(strings.ToLower(t.Subject), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// Apply returns the tickets that match f, in their original order.
// The input slice is not modified.
func Apply(tickets []protocol.Ticket, f Filter) []protocol.Ticket {
	out := make([]protocol.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// ServerQuery converts the status and category predicates into the query sent
// to the backend for employee. Search text is always applied locally.
func (f Filter) ServerQuery(employee string) protocol.TicketQuery {
	q := protocol.TicketQuery{Employee: employee}
	if f.Status != "" && f.Status != All {
		q.Status = protocol.TicketStatus(f.Status)
	}
	if f.Category != "" && f.Category != All {
		q.Category = protocol.TicketCategory(f.Category)
	}
	return q
}

// StatusOptions and CategoryOptions list the selectable filter values.
var (
	StatusOptions   = []string{All, string(protocol.TicketOpen), string(protocol.TicketInProgress), string(protocol.TicketResolved)}
	CategoryOptions = []string{All, string(protocol.CategoryNetwork), string(protocol.CategoryAccess),
		string(protocol.CategoryHardware), string(protocol.CategorySoftware), string(protocol.CategoryOther)}
)

// Stats counts tickets by status.
type Stats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// Count computes Stats over tickets.
func Count(tickets []protocol.Ticket) Stats {
	s := Stats{Total: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case protocol.TicketOpen:
			s.Open++
		case protocol.TicketInProgress:
			s.InProgress++
		case protocol.TicketResolved:
			s.Resolved++
		}
	}
	return s
}
