// Package slackconn connects the help desk to Slack over Socket Mode.
package slackconn

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/h1v3-io/helpdesk/internal/connector"
)

const userCacheTTL = time.Hour

// slashCommands are forwarded as desk commands when they lead the text of
// the /helpdesk slash command.
var slashCommands = []string{"help", "tickets", "resolve", "reset", "new"}

// Config holds Slack connector configuration.
type Config struct {
	BotToken string   // xoxb-... bot token
	AppToken string   // xapp-... app-level token for Socket Mode
	Channels []string // channels the bot answers mentions in; empty means all
}

// Connector implements connector.Connector for Slack. Direct messages are
// always answered; in channels the bot answers when mentioned.
type Connector struct {
	api     *slack.Client
	socket  *socketmode.Client
	config  Config
	handler connector.InboundHandler
	logger  *slog.Logger
	users   *cache.Cache
	cancel  context.CancelFunc
	botID   string

	inflight sync.WaitGroup
}

// New creates a Slack connector. Extra slack options are passed to the API
// client.
func New(cfg Config, handler connector.InboundHandler, logger *slog.Logger, opts ...slack.Option) (*Connector, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: app_token is required for socket mode")
	}
	if logger == nil {
		logger = slog.Default()
	}

	api := slack.New(cfg.BotToken, append([]slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}, opts...)...)
	return &Connector{
		api:     api,
		socket:  socketmode.New(api),
		config:  cfg,
		handler: handler,
		logger:  logger,
		users:   cache.New(userCacheTTL, 2*userCacheTTL),
	}, nil
}

func (c *Connector) Name() string { return "slack" }

// Start authorizes the bot and processes Socket Mode events until ctx is
// cancelled.
func (c *Connector) Start(ctx context.Context) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	c.botID = auth.UserID
	c.logger.Info("slack bot authorized", "user", auth.User, "team", auth.Team)

	ctx, c.cancel = context.WithCancel(ctx)
	go c.handleEvents(ctx)

	c.logger.Info("slack connector started")
	err = c.socket.RunContext(ctx)
	c.inflight.Wait()
	return err
}

// Stop shuts the connector down.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send posts msg to the channel, or thread, named by msg.ChatID.
func (c *Connector) Send(ctx context.Context, msg connector.OutboundMessage) error {
	channel, thread := splitChatID(msg.ChatID)
	opts := []slack.MsgOption{slack.MsgOptionText(MarkdownToMrkdwn(msg.Content), false)}
	if thread != "" {
		opts = append(opts, slack.MsgOptionTS(thread))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("slack: send message: %w", err)
	}
	return nil
}

func (c *Connector) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.socket.Events:
			switch event.Type {
			case socketmode.EventTypeEventsAPI:
				c.handleEventsAPI(ctx, event)
			case socketmode.EventTypeSlashCommand:
				c.handleSlashCommand(ctx, event)
			case socketmode.EventTypeConnectionError:
				c.logger.Warn("slack connection error", "data", event.Data)
			}
		}
	}
}

func (c *Connector) handleEventsAPI(ctx context.Context, event socketmode.Event) {
	ev, ok := event.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	c.socket.Ack(*event.Request)

	switch inner := ev.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Channel messages arrive again as mentions when addressed to us.
		if inner.ChannelType != "im" || inner.BotID != "" || inner.SubType != "" || inner.User == c.botID {
			return
		}
		c.dispatch(ctx, inner.User, chatID(inner.Channel, inner.ThreadTimeStamp), inner.Text)
	case *slackevents.AppMentionEvent:
		if inner.User == c.botID || !c.isAllowedChannel(inner.Channel) {
			return
		}
		thread := inner.ThreadTimeStamp
		if thread == "" {
			thread = inner.TimeStamp
		}
		c.dispatch(ctx, inner.User, chatID(inner.Channel, thread), StripMention(inner.Text, c.botID))
	}
}

func (c *Connector) handleSlashCommand(ctx context.Context, event socketmode.Event) {
	cmd, ok := event.Data.(slack.SlashCommand)
	if !ok {
		return
	}
	c.socket.Ack(*event.Request)
	c.dispatch(ctx, cmd.UserID, cmd.ChannelID, SlashText(cmd.Text))
}

// dispatch hands the message to the handler on its own goroutine so a slow
// chat turn does not hold up the event loop.
func (c *Connector) dispatch(ctx context.Context, user, chat, text string) {
	if user == "" || strings.TrimSpace(text) == "" {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		msg := connector.InboundMessage{
			Channel:    "slack",
			SenderID:   user,
			SenderName: c.employee(ctx, user),
			ChatID:     chat,
			Content:    text,
		}
		if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("slack inbound handler error", "chat", chat, "user", user, "error", err)
		}
	}()
}

// employee resolves a Slack user to the identity tickets are filed under:
// the profile email, falling back to the user name.
func (c *Connector) employee(ctx context.Context, userID string) string {
	if v, ok := c.users.Get(userID); ok {
		return v.(string)
	}
	u, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		c.logger.Warn("slack user lookup failed", "user", userID, "error", err)
		return ""
	}
	name := u.Profile.Email
	if name == "" {
		name = u.Name
	}
	c.users.SetDefault(userID, name)
	return name
}

func (c *Connector) isAllowedChannel(channel string) bool {
	return len(c.config.Channels) == 0 || slices.Contains(c.config.Channels, channel)
}

func chatID(channel, thread string) string {
	if thread == "" {
		return channel
	}
	return channel + ":" + thread
}

func splitChatID(id string) (channel, thread string) {
	channel, thread, _ = strings.Cut(id, ":")
	return channel, thread
}

// StripMention removes the <@BOTID> mention from message text.
func StripMention(text, botID string) string {
	return strings.TrimSpace(strings.Replace(text, "<@"+botID+">", "", 1))
}

// SlashText maps the text of the /helpdesk slash command to a desk message.
// "tickets" becomes "/tickets"; anything else is passed through as a chat
// message. Empty text asks for help.
func SlashText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "/help"
	}
	first, _, _ := strings.Cut(text, " ")
	if slices.Contains(slashCommands, strings.ToLower(first)) {
		return "/" + text
	}
	return text
}
