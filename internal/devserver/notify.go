package devserver

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// Notifier is told about ticket lifecycle events. Calls run in the
// background after the response has been written.
type Notifier interface {
	TicketCreated(ctx context.Context, t protocol.Ticket) error
	TicketUpdated(ctx context.Context, t protocol.Ticket, old protocol.TicketStatus) error
	TicketEscalated(ctx context.Context, t protocol.Ticket, old protocol.TicketPriority) error
}

type nopNotifier struct{}

func (nopNotifier) TicketCreated(context.Context, protocol.Ticket) error { return nil }
func (nopNotifier) TicketUpdated(context.Context, protocol.Ticket, protocol.TicketStatus) error {
	return nil
}
func (nopNotifier) TicketEscalated(context.Context, protocol.Ticket, protocol.TicketPriority) error {
	return nil
}

// slackPoster is the part of *slack.Client the notifier uses.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts ticket events to a Slack channel.
type SlackNotifier struct {
	api     slackPoster
	channel string
}

// NewSlackNotifier posts to channel using a bot token.
func NewSlackNotifier(api *slack.Client, channel string) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel}
}

func (n *SlackNotifier) TicketCreated(ctx context.Context, t protocol.Ticket) error {
	text := fmt.Sprintf(":ticket: *New %s priority ticket* `#%s` from %s\n>%s\nCategory: %s | Team: %s | Source: %s",
		t.Priority, protocol.ShortID(t.ID), t.Employee, t.Subject, t.Category, t.Team(), t.Source)
	return n.post(ctx, text)
}

func (n *SlackNotifier) TicketUpdated(ctx context.Context, t protocol.Ticket, old protocol.TicketStatus) error {
	icon := ":arrows_counterclockwise:"
	if t.Status == protocol.TicketResolved {
		icon = ":white_check_mark:"
	}
	text := fmt.Sprintf("%s Ticket `#%s` (%s): %s → *%s*", icon, protocol.ShortID(t.ID), t.Subject, old, t.Status)
	return n.post(ctx, text)
}

func (n *SlackNotifier) TicketEscalated(ctx context.Context, t protocol.Ticket, old protocol.TicketPriority) error {
	text := fmt.Sprintf(":rotating_light: Ticket `#%s` escalated from %s to *%s* after %s unresolved\n>%s\nTeam: %s",
		protocol.ShortID(t.ID), old, t.Priority, EscalationWindow(old), t.Subject, t.Team())
	return n.post(ctx, text)
}

func (n *SlackNotifier) post(ctx context.Context, text string) error {
	if _, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("devserver: slack notify: %w", err)
	}
	return nil
}
