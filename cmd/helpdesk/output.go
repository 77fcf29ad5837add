package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func ticketRows(tickets []protocol.Ticket) [][]string {
	rows := make([][]string, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, []string{
			protocol.ShortID(t.ID),
			string(t.Priority),
			string(t.Status),
			string(t.Category),
			t.Employee,
			truncate(t.Subject, 48),
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

var ticketHeaders = []string{"ID", "PRIORITY", "STATUS", "CATEGORY", "EMPLOYEE", "SUBJECT", "CREATED"}

func printTicket(w io.Writer, t *protocol.Ticket) {
	team := t.Team()
	if team == "" {
		team = "unassigned"
	}
	fmt.Fprintf(w, "Ticket   %s\n", t.ID)
	fmt.Fprintf(w, "Subject  %s\n", t.Subject)
	fmt.Fprintf(w, "Employee %s\n", t.Employee)
	fmt.Fprintf(w, "Status   %s\n", t.Status)
	fmt.Fprintf(w, "Priority %s\n", t.Priority)
	fmt.Fprintf(w, "Category %s\n", t.Category)
	fmt.Fprintf(w, "Team     %s\n", team)
	if t.Source != "" {
		fmt.Fprintf(w, "Source   %s\n", t.Source)
	}
	fmt.Fprintf(w, "Created  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Updated  %s\n\n", t.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, t.Description)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
