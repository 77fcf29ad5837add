// Package frontdesk answers chat platform users through per-conversation
// chat sessions and ticket collections.
package frontdesk

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/h1v3-io/helpdesk/internal/backend"
	"github.com/h1v3-io/helpdesk/internal/chat"
	"github.com/h1v3-io/helpdesk/internal/connector"
	"github.com/h1v3-io/helpdesk/internal/ticket"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

const (
	busyReply = "I'm still working on your previous message. Please wait for my answer."
	helpText  = "**POWERGRID IT Support**\n" +
		"Describe your issue and I'll suggest a fix or raise a ticket.\n\n" +
		"- `/tickets` list your open tickets\n" +
		"- `/resolve <id>` mark one of your tickets as resolved\n" +
		"- `/kb <words>` search the knowledge base\n" +
		"- `/reset` start a new conversation\n" +
		"- `/help` show this message"
)

// Backend is everything a conversation needs from the ticketing service.
type Backend interface {
	chat.Backend
	ticket.Backend
}

// KBSearcher answers /kb lookups. *kb.Cache and *backend.Client satisfy it.
type KBSearcher interface {
	SearchKB(ctx context.Context, query string, limit int) ([]protocol.KBArticle, error)
}

// Option configures a Desk.
type Option func(*Desk)

// WithKB enables the /kb command, returning up to limit articles.
func WithKB(s KBSearcher, limit int) Option {
	return func(d *Desk) {
		d.kb = s
		d.kbLimit = limit
	}
}

type conversation struct {
	employee string
	chat     *chat.Session
	tickets  *ticket.Collection
}

// Desk routes inbound chat messages to one conversation per platform, chat
// and sender, and sends replies back through the originating connector.
type Desk struct {
	OnSessionCreated func(key, employee string)
	OnSessionClosed  func(key string)

	backend Backend
	kb      KBSearcher
	kbLimit int
	logger  *slog.Logger

	mu         sync.Mutex
	sessions   map[string]*conversation
	connectors map[string]connector.Connector
}

// New creates a desk over b.
func New(b Backend, logger *slog.Logger, opts ...Option) *Desk {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Desk{
		backend:    b,
		logger:     logger,
		sessions:   make(map[string]*conversation),
		connectors: make(map[string]connector.Connector),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.kbLimit < 1 {
		d.kbLimit = 3
	}
	return d
}

// Attach registers c as the reply path for messages from c.Name().
func (d *Desk) Attach(c connector.Connector) {
	d.mu.Lock()
	d.connectors[c.Name()] = c
	d.mu.Unlock()
}

// HandleInbound is a connector.InboundHandler. It blocks until the reply has
// been sent.
func (d *Desk) HandleInbound(ctx context.Context, msg connector.InboundMessage) error {
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return nil
	}
	reply, err := d.answer(ctx, msg, text)
	if err != nil || reply == "" {
		return err
	}
	return d.reply(ctx, msg, reply)
}

func (d *Desk) answer(ctx context.Context, msg connector.InboundMessage, text string) (string, error) {
	key := sessionKey(msg)
	if strings.HasPrefix(text, "/") {
		cmd, arg, _ := strings.Cut(text, " ")
		// Telegram appends the bot name in groups: /tickets@helpdesk_bot
		cmd, _, _ = strings.Cut(cmd, "@")
		switch cmd {
		case "/start", "/help":
			return helpText, nil
		case "/reset", "/new":
			d.CloseSession(key)
			return chat.Greeting, nil
		case "/tickets":
			return d.listTickets(ctx, d.session(key, msg.Employee()))
		case "/resolve":
			return d.resolve(ctx, d.session(key, msg.Employee()), strings.TrimSpace(arg))
		case "/kb":
			return d.searchKB(ctx, strings.TrimSpace(arg))
		}
	}

	conv := d.session(key, msg.Employee())
	if !conv.chat.Send(ctx, text) {
		if conv.chat.Closed() {
			return "", fmt.Errorf("frontdesk: session %s closed", key)
		}
		return busyReply, nil
	}
	if conv.chat.Closed() {
		// Reset while the turn was in flight; the reset already answered.
		return "", nil
	}
	reply, ok := replyTo(conv.chat.Messages(), text)
	if !ok {
		return "", fmt.Errorf("frontdesk: session %s: reply missing", key)
	}
	return Render(reply), nil
}

// replyTo finds the newest assistant message that answers text.
func replyTo(log []chat.Message, text string) (chat.Message, bool) {
	for i := len(log) - 1; i > 0; i-- {
		if log[i].Role == chat.RoleAssistant && log[i-1].Role == chat.RoleUser && log[i-1].Content == text {
			return log[i], true
		}
	}
	return chat.Message{}, false
}

func (d *Desk) listTickets(ctx context.Context, conv *conversation) (string, error) {
	if err := conv.tickets.Refresh(ctx, protocol.TicketQuery{Employee: conv.employee}); err != nil {
		return "I couldn't load your tickets right now. Please try again later.", nil
	}
	var open []protocol.Ticket
	for _, t := range conv.tickets.Tickets() {
		if t.Status != protocol.TicketResolved {
			open = append(open, t)
		}
	}
	return RenderTickets(open), nil
}

func (d *Desk) resolve(ctx context.Context, conv *conversation, ref string) (string, error) {
	if ref == "" {
		return "Usage: `/resolve <ticket id>`", nil
	}
	if len(conv.tickets.Tickets()) == 0 {
		if err := conv.tickets.Refresh(ctx, protocol.TicketQuery{Employee: conv.employee}); err != nil {
			return "I couldn't load your tickets right now. Please try again later.", nil
		}
	}

	t, problem := match(conv.tickets.Tickets(), strings.TrimPrefix(ref, "#"))
	if problem != "" {
		return problem, nil
	}
	if t.Status == protocol.TicketResolved {
		return fmt.Sprintf("Ticket `#%s` is already resolved.", protocol.ShortID(t.ID)), nil
	}
	if err := conv.tickets.Resolve(ctx, t.ID); err != nil {
		d.logger.Warn("resolve failed", "ticket", protocol.ShortID(t.ID), "error", err)
		if backend.StatusCode(err) == 404 {
			return fmt.Sprintf("Ticket `#%s` no longer exists.", protocol.ShortID(t.ID)), nil
		}
		return fmt.Sprintf("I couldn't resolve ticket `#%s`. Please try again.", protocol.ShortID(t.ID)), nil
	}
	return fmt.Sprintf("Ticket `#%s` (%s) is now marked as resolved.", protocol.ShortID(t.ID), t.Subject), nil
}

func (d *Desk) searchKB(ctx context.Context, query string) (string, error) {
	if d.kb == nil {
		return "Knowledge base search is not available here.", nil
	}
	if query == "" {
		return "Usage: `/kb <words>`", nil
	}
	articles, err := d.kb.SearchKB(ctx, query, d.kbLimit)
	if err != nil {
		d.logger.Warn("kb search failed", "query", query, "error", err)
		return "I couldn't search the knowledge base right now. Please try again later.", nil
	}
	return RenderArticles(query, articles), nil
}

// match finds the ticket whose id starts with ref. On failure it returns a
// reply explaining why.
func match(tickets []protocol.Ticket, ref string) (protocol.Ticket, string) {
	var found []protocol.Ticket
	for _, t := range tickets {
		if strings.HasPrefix(t.ID, ref) {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return protocol.Ticket{}, fmt.Sprintf("You have no ticket matching `%s`.", ref)
	case 1:
		return found[0], ""
	default:
		return protocol.Ticket{}, fmt.Sprintf("`%s` matches %d tickets. Please use more characters of the id.", ref, len(found))
	}
}

func (d *Desk) session(key, employee string) *conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conv, ok := d.sessions[key]; ok {
		return conv
	}
	conv := &conversation{
		employee: employee,
		chat:     chat.New(employee, d.backend, d.logger.With("session", key)),
		tickets:  ticket.NewCollection(d.backend, d.logger.With("session", key)),
	}
	d.sessions[key] = conv
	d.logger.Info("session created", "key", key, "employee", employee)
	if d.OnSessionCreated != nil {
		d.OnSessionCreated(key, employee)
	}
	return conv
}

// CloseSession discards the conversation for key. The next message starts
// a fresh one.
func (d *Desk) CloseSession(key string) {
	d.mu.Lock()
	conv, ok := d.sessions[key]
	delete(d.sessions, key)
	d.mu.Unlock()
	if !ok {
		return
	}
	conv.chat.Close()
	conv.tickets.Close()
	d.logger.Info("session closed", "key", key)
	if d.OnSessionClosed != nil {
		d.OnSessionClosed(key)
	}
}

// Sessions returns the active session keys in sorted order.
func (d *Desk) Sessions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.sessions))
	for k := range d.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close discards every session.
func (d *Desk) Close() {
	for _, key := range d.Sessions() {
		d.CloseSession(key)
	}
}

func (d *Desk) reply(ctx context.Context, msg connector.InboundMessage, content string) error {
	d.mu.Lock()
	c, ok := d.connectors[msg.Channel]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("frontdesk: no connector attached for %q", msg.Channel)
	}
	return c.Send(ctx, connector.OutboundMessage{ChatID: msg.ChatID, Content: content})
}

// sessionKey scopes a conversation to one sender in one chat, so group chats
// keep each member's tickets apart.
func sessionKey(msg connector.InboundMessage) string {
	return msg.Channel + ":" + msg.ChatID + ":" + msg.SenderID
}
