// Command helpdesk is the POWERGRID IT support client: an interactive chat
// and ticket board, scripting commands over the backend API, the
// development backend and the Slack/Telegram front-ends.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/h1v3-io/helpdesk/internal/backend"
	"github.com/h1v3-io/helpdesk/internal/config"
	"github.com/h1v3-io/helpdesk/internal/logbuf"
)

const logBufferSize = 2000

// app holds the state shared by every command once flags are parsed.
type app struct {
	configPath string
	backendURL string
	employee   string
	logLevel   string

	cfg    *config.Config
	logs   *logbuf.Buffer
	level  slog.Level
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "helpdesk",
		Short: "POWERGRID IT support client",
		Long: `helpdesk talks to the IT support backend.

Run "helpdesk chat" for the interactive assistant and ticket board,
"helpdesk serve" to run a local development backend, or
"helpdesk connect" to answer employees on Slack and Telegram.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (.json, .jsonc, .yaml); defaults to HELPDESK_* variables")
	flags.StringVar(&a.backendURL, "backend", "", "backend base URL (overrides config)")
	flags.StringVar(&a.employee, "employee", "", "employee identity for chat and ticket lists (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newChatCmd(a),
		newTicketsCmd(a),
		newKBCmd(a),
		newHealthCmd(a),
		newClassifyCmd(a),
		newServeCmd(a),
		newConnectCmd(a),
	)
	return root
}

// setup loads configuration, applies flag overrides and installs the
// logger. Records are kept in the log buffer and written to stderr as JSON.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	if a.backendURL != "" {
		cfg.Backend.URL = a.backendURL
	}
	if a.employee != "" {
		cfg.Backend.Employee = a.employee
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.level = logbuf.ParseLevel(cfg.Log.Level)
	a.logs = logbuf.New(logBufferSize)
	a.installLogger(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: a.level}))
	return nil
}

// interactive stops log output to the terminal; records are only kept in
// the buffer, where /logs reads them.
func (a *app) interactive() {
	a.installLogger(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: a.level}))
}

func (a *app) installLogger(inner slog.Handler) {
	a.logger = slog.New(logbuf.NewHandler(inner, a.logs))
	slog.SetDefault(a.logger)
}

func (a *app) client() *backend.Client {
	timeout := time.Duration(a.cfg.Backend.Timeout) * time.Second
	return backend.New(
		backend.WithBaseURL(a.cfg.Backend.URL),
		backend.WithAPIKey(a.cfg.Backend.APIKey),
		backend.WithHTTPClient(&http.Client{Timeout: timeout}),
		backend.WithLogger(a.logger),
	)
}

// employeeName returns the configured identity, falling back to the login
// name of the current user.
func (a *app) employeeName() (string, error) {
	if a.cfg.Backend.Employee != "" {
		return a.cfg.Backend.Employee, nil
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, nil
	}
	return "", errors.New("no employee identity: set --employee or HELPDESK_EMPLOYEE")
}

func (a *app) kbCacheTTL() time.Duration {
	return time.Duration(a.cfg.KB.CacheTTL) * time.Second
}

// quiet maps the cancellation that ends a long-running command to success.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
