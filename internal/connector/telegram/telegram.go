// Package telegram connects the help desk to a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/h1v3-io/helpdesk/internal/connector"
)

// Config holds Telegram connector configuration.
type Config struct {
	Token     string  // bot token from @BotFather
	AllowFrom []int64 // allowed Telegram user IDs; empty allows everyone
}

// Connector implements connector.Connector for Telegram using long polling.
type Connector struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler connector.InboundHandler
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// Option configures a Connector.
type Option func(*options)

type options struct {
	endpoint string
}

// WithAPIEndpoint overrides the Bot API endpoint, a format string taking the
// token and the method name.
func WithAPIEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// New authorizes the bot and creates a Telegram connector.
func New(cfg Config, handler connector.InboundHandler, logger *slog.Logger, opts ...Option) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	o := options{endpoint: tgbotapi.APIEndpoint}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, o.endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:     bot,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}, nil
}

func (c *Connector) Name() string { return "telegram" }

// Start long-polls for updates until ctx is cancelled. Each update is
// handled on its own goroutine so one slow reply does not hold up other
// chats.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram connector started", "bot", c.bot.Self.UserName)
	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			go c.handleUpdate(ctx, update)
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return nil
		}
	}
}

// Stop shuts the connector down.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send delivers msg as HTML, falling back to plain text when Telegram
// rejects the markup.
func (c *Connector) Send(_ context.Context, msg connector.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat_id %q: %w", msg.ChatID, err)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	out := tgbotapi.NewMessage(chatID, MarkdownToTelegramHTML(msg.Content))
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	if _, err := c.bot.Send(out); err != nil {
		c.logger.Warn("html send failed, retrying as plain text", "chat_id", chatID, "error", err)
		out.Text = StripMarkdown(msg.Content)
		out.ParseMode = ""
		if _, err := c.bot.Send(out); err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}

func (c *Connector) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	if len(c.config.AllowFrom) > 0 && !slices.Contains(c.config.AllowFrom, msg.From.ID) {
		c.logger.Warn("unauthorized user", "user_id", msg.From.ID, "username", msg.From.UserName)
		return
	}

	text := messageText(msg)
	if text == "" {
		return
	}

	// Chat actions are best effort.
	c.bot.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping))

	in := connector.InboundMessage{
		Channel:    "telegram",
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: senderName(msg.From),
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		Content:    text,
	}
	if err := c.handler(ctx, in); err != nil {
		c.logger.Error("inbound handler error", "chat_id", msg.Chat.ID, "error", err)
	}
}

// messageText returns the text to forward: commands normalised to
// "/name args", otherwise the text or photo caption.
func messageText(msg *tgbotapi.Message) string {
	if msg.IsCommand() {
		text := "/" + msg.Command()
		if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
			text += " " + args
		}
		return text
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// senderName picks the identity tickets are filed under: the @username, or
// the full name for users without one.
func senderName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
