// Package connector defines the contract between chat front-ends (Slack,
// Telegram) and the help desk that answers them.
package connector

import "context"

// Connector is a chat platform the help desk is reachable on.
type Connector interface {
	// Name returns the platform name, e.g. "slack".
	Name() string
	// Start listens for inbound messages until ctx is cancelled.
	Start(ctx context.Context) error
	// Stop shuts the connector down.
	Stop() error
	// Send delivers a reply to a chat.
	Send(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage is a reply to a chat.
type OutboundMessage struct {
	ChatID  string
	Content string // Markdown
}

// InboundMessage is a chat message addressed to the help desk.
type InboundMessage struct {
	Channel    string // platform name
	SenderID   string // stable platform user id
	SenderName string // display name or handle, may be empty
	ChatID     string
	Content    string
}

// Employee returns the identity used for tickets raised from this message.
func (m InboundMessage) Employee() string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.Channel + ":" + m.SenderID
}

// InboundHandler processes one inbound message. Replies go out through the
// originating connector's Send.
type InboundHandler func(ctx context.Context, msg InboundMessage) error
