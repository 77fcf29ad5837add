package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h1v3-io/helpdesk/internal/ticket"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func newTicketsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List, show, file and resolve support tickets",
	}
	cmd.AddCommand(newTicketsListCmd(a), newTicketsShowCmd(a), newTicketsCreateCmd(a), newTicketsResolveCmd(a))
	return cmd
}

func newTicketsListCmd(a *app) *cobra.Command {
	filter := ticket.Filter{Status: ticket.All, Category: ticket.All}
	var all, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets for the current employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFilter(filter); err != nil {
				return err
			}
			employee := ""
			if !all {
				var err error
				if employee, err = a.employeeName(); err != nil {
					return err
				}
			}

			c := ticket.NewCollection(a.client(), a.logger)
			defer c.Close()
			if err := c.Refresh(cmd.Context(), filter.ServerQuery(employee)); err != nil {
				return err
			}
			visible := c.Visible(filter)

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, visible)
			}
			if len(visible) == 0 {
				fmt.Fprintln(out, "No tickets.")
				return nil
			}
			printTable(out, ticketHeaders, ticketRows(visible))
			st := ticket.Count(visible)
			fmt.Fprintf(out, "%d tickets: %d open, %d in progress, %d resolved\n", st.Total, st.Open, st.InProgress, st.Resolved)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.Status, "status", ticket.All, "all, open, in_progress or resolved")
	f.StringVar(&filter.Category, "category", ticket.All, "all, network, access, hardware, software or other")
	f.StringVar(&filter.SearchText, "search", "", "only tickets whose subject or description contains this text")
	f.BoolVar(&all, "all", false, "list every employee's tickets")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func validateFilter(f ticket.Filter) error {
	if f.Status != ticket.All && !protocol.TicketStatus(f.Status).Valid() {
		return fmt.Errorf("invalid --status %q", f.Status)
	}
	if f.Category != ticket.All && !protocol.TicketCategory(f.Category).Valid() {
		return fmt.Errorf("invalid --category %q", f.Category)
	}
	return nil
}

func newTicketsShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.client().GetTicket(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), t)
			}
			printTicket(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTicketsCreateCmd(a *app) *cobra.Command {
	var (
		subject  string
		category string
		priority string
		source   string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "create <description>...",
		Short: "File a ticket directly, without the assistant",
		Long: `Files a ticket for the current employee. Category and priority are
optional; the backend classifies the description when they are left out.
The subject defaults to the first line of the description.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := protocol.TicketCreate{
				Source:      protocol.TicketSource(source),
				Subject:     subject,
				Description: strings.Join(args, " "),
				Category:    protocol.TicketCategory(category),
				Priority:    protocol.TicketPriority(priority),
			}
			switch {
			case !req.Source.Valid():
				return fmt.Errorf("invalid --source %q", source)
			case req.Category != "" && !req.Category.Valid():
				return fmt.Errorf("invalid --category %q", category)
			case req.Priority != "" && !req.Priority.Valid():
				return fmt.Errorf("invalid --priority %q", priority)
			}
			if req.Subject == "" {
				first, _, _ := strings.Cut(req.Description, "\n")
				req.Subject = truncate(strings.TrimSpace(first), 100)
			}
			employee, err := a.employeeName()
			if err != nil {
				return err
			}
			req.Employee = employee

			t, err := a.client().CreateTicket(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, t)
			}
			fmt.Fprintf(out, "created #%s (%s priority, %s)\n", protocol.ShortID(t.ID), t.Priority, t.Team())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&subject, "subject", "", "ticket subject (default: first line of the description)")
	f.StringVar(&category, "category", "", "network, access, hardware, software or other (default: classified)")
	f.StringVar(&priority, "priority", "", "low, medium or high (default: classified)")
	f.StringVar(&source, "source", string(protocol.SourceChatbot), "intake source: chatbot, email, glpi or solman")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTicketsResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>...",
		Short: "Mark tickets as resolved",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ticket.NewCollection(a.client(), a.logger)
			defer c.Close()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			g, ctx := errgroup.WithContext(cmd.Context())
			for _, id := range args {
				g.Go(func() error {
					if err := c.Resolve(ctx, id); err != nil {
						return err
					}
					mu.Lock()
					fmt.Fprintf(out, "resolved #%s\n", protocol.ShortID(id))
					mu.Unlock()
					return nil
				})
			}
			return g.Wait()
		},
	}
}
