package main

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h1v3-io/helpdesk/internal/config"
	"github.com/h1v3-io/helpdesk/internal/connector/webhook"
	"github.com/h1v3-io/helpdesk/internal/devserver"
	"github.com/h1v3-io/helpdesk/internal/kb"
	"github.com/h1v3-io/helpdesk/internal/scheduler"
	"github.com/h1v3-io/helpdesk/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
		db   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend",
		Long: `Runs a self-contained backend speaking the same HTTP API as production,
backed by SQLite. Unresolved tickets are escalated on
server.escalation_schedule; ticket events are posted to Slack when
notify.slack_channel and a Slack bot token are configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Server
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = db
			}
			return quiet(a.serve(cmd.Context(), cfg))
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	cmd.Flags().StringVar(&db, "db", "", "SQLite database path (default server.db_path)")
	return cmd
}

func (a *app) serve(ctx context.Context, cfg config.ServerConfig) error {
	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.SeedFile != "" {
		articles, err := kb.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := kb.Seed(ctx, st, articles); err != nil {
			return err
		}
		a.logger.Info("knowledge base seeded", "file", cfg.SeedFile, "articles", len(articles))
	}

	hooks := make(map[string]webhook.EndpointConfig, len(a.cfg.Webhooks.Endpoints))
	for name, ep := range a.cfg.Webhooks.Endpoints {
		hooks[name] = webhook.EndpointConfig{Secret: ep.Secret, BearerToken: ep.BearerToken}
	}

	var opts []devserver.Option
	if ch := a.cfg.Notify.SlackChannel; ch != "" {
		if sc := a.cfg.Connectors.Slack; sc != nil && sc.BotToken != "" {
			opts = append(opts, devserver.WithNotifier(devserver.NewSlackNotifier(slack.New(sc.BotToken), ch)))
			a.logger.Info("slack notifications enabled", "channel", ch)
		} else {
			a.logger.Warn("notify.slack_channel set without a slack bot token, notifications disabled")
		}
	}

	srv := devserver.NewServer(st, devserver.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		APIKey:      cfg.APIKey,
		CORSOrigins: cfg.CORSOrigins,
		Webhooks:    hooks,
		KBLimit:     a.cfg.KB.Limit,
	}, a.logger, a.logs, opts...)

	sched := scheduler.New(a.logger)
	if cfg.EscalationSchedule != "" {
		err := sched.Add("tickets.escalate", cfg.EscalationSchedule, func(ctx context.Context) error {
			n, err := srv.Escalate(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				a.logger.Info("tickets escalated", "count", n)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return sched.Start(gctx) })
	return g.Wait()
}
