package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h1v3-io/helpdesk/internal/chat"
	"github.com/h1v3-io/helpdesk/internal/frontdesk"
	"github.com/h1v3-io/helpdesk/internal/kb"
	"github.com/h1v3-io/helpdesk/internal/logbuf"
	"github.com/h1v3-io/helpdesk/internal/scheduler"
	"github.com/h1v3-io/helpdesk/internal/ticket"
	"github.com/h1v3-io/helpdesk/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the support assistant and manage your tickets",
		Long: `Opens the terminal UI: a chat pane and a ticket board (tab switches).
The ticket board refreshes on the configured schedule.

With --plain, runs a line-oriented REPL instead. REPL commands:
  /kb <words>  search the knowledge base
  /logs [n]    show recent log records
  /quit        leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.interactive()
			employee, err := a.employeeName()
			if err != nil {
				return err
			}
			client := a.client()
			session := chat.New(employee, client, a.logger)
			defer session.Close()
			kbc := kb.NewCache(client, a.kbCacheTTL(), a.logger)

			if plain {
				r := &repl{session: session, kb: kbc, kbLimit: a.cfg.KB.Limit, logs: a.logs}
				return r.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			}

			tickets := ticket.NewCollection(client, a.logger)
			defer tickets.Close()
			return runTUI(cmd.Context(), a, tui.Options{
				Session: session,
				Tickets: tickets,
				Logs:    a.logs,
				KB:      kbc,
				KBLimit: a.cfg.KB.Limit,
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "line-oriented REPL instead of the terminal UI")
	return cmd
}

// runTUI runs the terminal UI alongside the ticket auto-refresh job. Quitting
// the UI stops the scheduler.
func runTUI(ctx context.Context, a *app, opts tui.Options) error {
	sched := scheduler.New(a.logger)
	if spec := a.cfg.Refresh.Schedule; spec != "" {
		if err := sched.Add("tickets.refresh", spec, opts.Tickets.Reload); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(gctx) })
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, opts)
	})
	return quiet(g.Wait())
}

// repl is the --plain chat loop.
type repl struct {
	session *chat.Session
	kb      frontdesk.KBSearcher
	kbLimit int
	logs    *logbuf.Buffer
}

func (r *repl) run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "%s\n\n", frontdesk.Render(r.session.Last()))
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case strings.HasPrefix(line, "/"):
			r.command(ctx, out, line)
		default:
			r.session.Send(ctx, line)
			fmt.Fprintf(out, "%s\n\n", frontdesk.Render(r.session.Last()))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) command(ctx context.Context, out io.Writer, line string) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/kb":
		if arg == "" {
			fmt.Fprintln(out, "usage: /kb <words>")
			return
		}
		articles, err := r.kb.SearchKB(ctx, arg, r.kbLimit)
		if err != nil {
			fmt.Fprintln(out, "kb search failed:", err)
			return
		}
		fmt.Fprintf(out, "%s\n\n", frontdesk.RenderArticles(arg, articles))
	case "/logs":
		n := 20
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v < 1 {
				fmt.Fprintln(out, "usage: /logs [n]")
				return
			}
			n = v
		}
		for _, e := range r.logs.Query(logbuf.Filter{MinLevel: slog.LevelDebug, Limit: n}) {
			fmt.Fprintln(out, e.String())
		}
	default:
		fmt.Fprintf(out, "unknown command %s (try /kb, /logs or /quit)\n", name)
	}
}
