package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/h1v3-io/helpdesk/internal/connector"
	slackconn "github.com/h1v3-io/helpdesk/internal/connector/slack"
	"github.com/h1v3-io/helpdesk/internal/connector/telegram"
	"github.com/h1v3-io/helpdesk/internal/frontdesk"
	"github.com/h1v3-io/helpdesk/internal/kb"
)

func newConnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Answer employees on Slack and Telegram",
		Long: `Runs the configured chat connectors. Every sender gets their own
assistant session; /tickets, /resolve <id> and /kb <words> work as in the
interactive client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return quiet(a.connect(cmd.Context()))
		},
	}
}

func (a *app) connect(ctx context.Context) error {
	cache := kb.NewCache(a.client(), a.kbCacheTTL(), a.logger)
	desk := frontdesk.New(a.client(), a.logger, frontdesk.WithKB(cache, a.cfg.KB.Limit))
	desk.OnSessionCreated = func(key, employee string) {
		a.logger.Info("chat session opened", "session", key, "employee", employee)
	}
	desk.OnSessionClosed = func(key string) {
		a.logger.Info("chat session closed", "session", key)
	}
	defer desk.Close()

	var conns []connector.Connector
	if sc := a.cfg.Connectors.Slack; sc != nil {
		c, err := slackconn.New(slackconn.Config{
			BotToken: sc.BotToken,
			AppToken: sc.AppToken,
			Channels: sc.Channels,
		}, desk.HandleInbound, a.logger)
		if err != nil {
			return err
		}
		conns = append(conns, c)
	}
	if tc := a.cfg.Connectors.Telegram; tc != nil {
		c, err := telegram.New(telegram.Config{Token: tc.Token, AllowFrom: tc.AllowFrom}, desk.HandleInbound, a.logger)
		if err != nil {
			return err
		}
		conns = append(conns, c)
	}
	if len(conns) == 0 {
		return errors.New("no connectors configured: set connectors.slack or connectors.telegram")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range conns {
		desk.Attach(c)
		g.Go(func() error { return quiet(c.Start(gctx)) })
	}
	g.Go(func() error {
		<-gctx.Done()
		for _, c := range conns {
			if err := c.Stop(); err != nil {
				a.logger.Warn("connector stop failed", "connector", c.Name(), "error", err)
			}
		}
		return nil
	})
	return g.Wait()
}
