package ticket

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func sampleTickets() []protocol.Ticket {
	return []protocol.Ticket{
		{ID: "t1", Subject: "VPN drops", Description: "Cannot reach intranet over VPN", Status: protocol.TicketOpen, Category: protocol.CategoryNetwork},
		{ID: "t2", Subject: "Printer jam", Description: "Third floor PRINTER shows error 41", Status: protocol.TicketOpen, Category: protocol.CategoryHardware},
		{ID: "t3", Subject: "Password expired", Description: "Need reset", Status: protocol.TicketResolved, Category: protocol.CategoryAccess},
		{ID: "t4", Subject: "New monitor", Description: "Request for printer and monitor", Status: protocol.TicketInProgress, Category: protocol.CategoryHardware},
		{ID: "t5", Subject: "vpn client licence", Description: "Licence renewal", Status: protocol.TicketOpen, Category: protocol.CategorySoftware},
	}
}

func ids(tickets []protocol.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.ID
	}
	return out
}

func TestApply(t *testing.T) {
	tickets := sampleTickets()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero filter passes all", Filter{}, []string{"t1", "t2", "t3", "t4", "t5"}},
		{"all literals pass all", Filter{Status: All, Category: All}, []string{"t1", "t2", "t3", "t4", "t5"}},
		{"status", Filter{Status: "open", Category: All}, []string{"t1", "t2", "t5"}},
		{"category", Filter{Status: All, Category: "hardware"}, []string{"t2", "t4"}},
		{"search subject case-insensitive", Filter{SearchText: "VPN"}, []string{"t1", "t5"}},
		{"search description", Filter{SearchText: "printer"}, []string{"t2", "t4"}},
		{"combined", Filter{Status: "open", Category: "network", SearchText: "vpn"}, []string{"t1"}},
		{"no match", Filter{Status: "resolved", Category: "network"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(tickets, tt.filter))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_PureAndCommutative(t *testing.T) {
	tickets := sampleTickets()
	before := sampleTickets()

	f := Filter{Status: "open", Category: "network", SearchText: "vpn"}
	first := Apply(tickets, f)
	second := Apply(tickets, f)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated Apply differs:\n%s", diff)
	}
	if diff := cmp.Diff(before, tickets); diff != "" {
		t.Errorf("Apply mutated input:\n%s", diff)
	}

	// Intersecting single predicates in any order gives the same set.
	bySearch := Apply(Apply(Apply(tickets, Filter{SearchText: "vpn"}), Filter{Category: "network"}), Filter{Status: "open"})
	byStatus := Apply(Apply(Apply(tickets, Filter{Status: "open"}), Filter{SearchText: "vpn"}), Filter{Category: "network"})
	if diff := cmp.Diff(ids(first), ids(bySearch)); diff != "" {
		t.Errorf("search-first composition differs:\n%s", diff)
	}
	if diff := cmp.Diff(ids(first), ids(byStatus)); diff != "" {
		t.Errorf("status-first composition differs:\n%s", diff)
	}
}

func TestServerQuery(t *testing.T) {
	q := Filter{Status: All, Category: All, SearchText: "vpn"}.ServerQuery("alice")
	if diff := cmp.Diff(protocol.TicketQuery{Employee: "alice"}, q); diff != "" {
		t.Errorf("all filters should be omitted (-want +got):\n%s", diff)
	}

	q = Filter{Status: "open", Category: "network"}.ServerQuery("alice")
	want := protocol.TicketQuery{Employee: "alice", Status: protocol.TicketOpen, Category: protocol.CategoryNetwork}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Errorf("ServerQuery mismatch (-want +got):\n%s", diff)
	}
}

func TestCount(t *testing.T) {
	got := Count(sampleTickets())
	want := Stats{Total: 5, Open: 3, InProgress: 1, Resolved: 1}
	if got != want {
		t.Errorf("Count = %+v, want %+v", got, want)
	}
}
