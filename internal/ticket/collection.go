// Package ticket holds the client-side view of an employee's tickets.
package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// Backend is the part of the ticketing client a Collection needs.
type Backend interface {
	ListTickets(ctx context.Context, q protocol.TicketQuery) ([]protocol.Ticket, error)
	SetTicketStatus(ctx context.Context, id string, status protocol.TicketStatus) (*protocol.Ticket, error)
}

// Collection caches the server's ticket list and tracks in-flight resolves.
// The cached list is only ever replaced wholesale by Refresh; a failed
// Refresh or Resolve leaves it untouched.
type Collection struct {
	// OnChange, if set, is called after the list, loading flag or pending
	// set changes. It runs without the collection lock held.
	OnChange func()

	backend  Backend
	logger   *slog.Logger
	resolves singleflight.Group

	mu      sync.Mutex
	tickets []protocol.Ticket
	query   protocol.TicketQuery
	loading int
	pending map[string]struct{}
	lastErr error
	closed  bool
}

// NewCollection creates an empty collection.
func NewCollection(b Backend, logger *slog.Logger) *Collection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{
		backend: b,
		logger:  logger,
		tickets: []protocol.Ticket{},
		pending: make(map[string]struct{}),
	}
}

// Refresh fetches the tickets matching q and replaces the cached list. q
// becomes the query reused by post-resolve refreshes. When concurrent
// refreshes overlap, the one that completes last wins.
func (c *Collection) Refresh(ctx context.Context, q protocol.TicketQuery) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.query = q
	c.loading++
	c.mu.Unlock()
	c.changed()

	tickets, err := c.backend.ListTickets(ctx, q)

	c.mu.Lock()
	c.loading--
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.lastErr = err
	} else {
		c.tickets = tickets
		c.lastErr = nil
	}
	c.mu.Unlock()
	c.changed()

	if err != nil {
		c.logger.Warn("ticket refresh failed", "employee", q.Employee, "error", err)
		return fmt.Errorf("ticket: refresh: %w", err)
	}
	c.logger.Debug("tickets refreshed", "employee", q.Employee, "count", len(tickets))
	return nil
}

// Reload repeats the last Refresh query.
func (c *Collection) Reload(ctx context.Context) error {
	return c.Refresh(ctx, c.Query())
}

// Resolve asks the backend to mark id resolved. It is a no-op when the
// cached copy is already resolved. Concurrent calls for the same id share a
// single request and all return when it settles. On settlement id leaves the
// pending set and the list is refreshed with the last query. The returned
// error is that of the status change; a failed follow-up refresh is only
// recorded in LastError.
func (c *Collection) Resolve(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if t, ok := c.find(id); ok && t.Status == protocol.TicketResolved {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	_, err, shared := c.resolves.Do(id, func() (any, error) {
		c.mu.Lock()
		c.pending[id] = struct{}{}
		c.mu.Unlock()
		c.changed()

		_, err := c.backend.SetTicketStatus(ctx, id, protocol.TicketResolved)

		c.mu.Lock()
		delete(c.pending, id)
		closed := c.closed
		c.mu.Unlock()
		c.changed()

		if err != nil {
			c.logger.Warn("ticket resolve failed", "ticket", id, "error", err)
		} else {
			c.logger.Info("ticket resolved", "ticket", id)
		}
		if !closed {
			c.Reload(ctx)
		}
		return nil, err
	})
	if shared {
		c.logger.Debug("resolve joined in-flight request", "ticket", id)
	}
	if err != nil {
		return fmt.Errorf("ticket: resolve %s: %w", id, err)
	}
	return nil
}

// Visible projects the cached list through f. It does not modify the
// collection.
func (c *Collection) Visible(f Filter) []protocol.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Apply(c.tickets, f)
}

// Tickets returns a snapshot of the cached list in server order.
func (c *Collection) Tickets() []protocol.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Ticket, len(c.tickets))
	copy(out, c.tickets)
	return out
}

// Get returns the cached copy of a ticket.
func (c *Collection) Get(id string) (protocol.Ticket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(id)
}

// Stats counts the cached tickets by status.
func (c *Collection) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Count(c.tickets)
}

// Query returns the query of the most recent Refresh.
func (c *Collection) Query() protocol.TicketQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Loading reports whether any refresh is in flight.
func (c *Collection) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

// LastError returns the error of the most recent refresh, or nil if it
// succeeded.
func (c *Collection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Pending reports whether a resolve for id is in flight. Presentations
// should treat such tickets as non-actionable.
func (c *Collection) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// PendingIDs returns the ids with an in-flight resolve, sorted.
func (c *Collection) PendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close tears the collection down. Results arriving afterwards are dropped.
func (c *Collection) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Collection) find(id string) (protocol.Ticket, bool) {
	for _, t := range c.tickets {
		if t.ID == id {
			return t, true
		}
	}
	return protocol.Ticket{}, false
}

func (c *Collection) changed() {
	if c.OnChange != nil {
		c.OnChange()
	}
}
