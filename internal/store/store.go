// Package store persists tickets and knowledge-base articles for the
// development backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// ErrNotFound is returned when a ticket or article does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface behind the development backend.
type Store interface {
	// CreateTicket inserts a new ticket. ID and timestamps must be set.
	CreateTicket(ctx context.Context, t *protocol.Ticket) error
	// GetTicket retrieves a ticket by ID.
	GetTicket(ctx context.Context, id string) (*protocol.Ticket, error)
	// ListTickets returns tickets matching q, newest first.
	ListTickets(ctx context.Context, q protocol.TicketQuery) ([]protocol.Ticket, error)
	// CountTickets returns the number of tickets matching q, ignoring q.Limit.
	CountTickets(ctx context.Context, q protocol.TicketQuery) (int, error)
	// UpdateStatus changes a ticket's status and returns the updated ticket.
	UpdateStatus(ctx context.Context, id string, status protocol.TicketStatus) (*protocol.Ticket, error)
	// UpdatePriority changes a ticket's priority.
	UpdatePriority(ctx context.Context, id string, p protocol.TicketPriority) error
	// Unresolved returns unresolved tickets of priority p created before t.
	Unresolved(ctx context.Context, p protocol.TicketPriority, before time.Time) ([]protocol.Ticket, error)

	// SaveArticle creates or updates a knowledge-base article.
	SaveArticle(ctx context.Context, a *protocol.KBArticle) error
	// GetArticle retrieves an article by ID.
	GetArticle(ctx context.Context, id string) (*protocol.KBArticle, error)
	// IncrementViews bumps an article's view counter.
	IncrementViews(ctx context.Context, id string) error
	// SearchArticles returns up to limit articles matching query, best first.
	SearchArticles(ctx context.Context, query string, limit int) ([]protocol.KBArticle, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error
	Close() error
}

// Ticket list limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)
