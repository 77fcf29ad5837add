package devserver

import (
	"context"
	"fmt"
	"time"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

var escalationWindows = map[protocol.TicketPriority]time.Duration{
	protocol.PriorityHigh:   2 * time.Hour,
	protocol.PriorityMedium: 24 * time.Hour,
	protocol.PriorityLow:    72 * time.Hour,
}

// EscalationWindow is how long a ticket of priority p may stay unresolved.
func EscalationWindow(p protocol.TicketPriority) time.Duration {
	if d, ok := escalationWindows[p]; ok {
		return d
	}
	return escalationWindows[protocol.PriorityLow]
}

// Escalate raises low and medium tickets that have been unresolved past
// their window to high priority and reports high priority tickets that are
// overdue. It returns the number of tickets raised.
func (s *Server) Escalate(ctx context.Context) (int, error) {
	now := s.now()
	raised := 0
	for _, p := range []protocol.TicketPriority{protocol.PriorityLow, protocol.PriorityMedium} {
		stale, err := s.store.Unresolved(ctx, p, now.Add(-EscalationWindow(p)))
		if err != nil {
			return raised, fmt.Errorf("devserver: escalate: %w", err)
		}
		for _, t := range stale {
			if err := s.store.UpdatePriority(ctx, t.ID, protocol.PriorityHigh); err != nil {
				return raised, fmt.Errorf("devserver: escalate %s: %w", protocol.ShortID(t.ID), err)
			}
			raised++
			s.logger.Info("ticket escalated",
				"ticket", protocol.ShortID(t.ID),
				"from", p,
				"open_for", now.Sub(t.CreatedAt).Round(time.Minute),
			)
			t.Priority = protocol.PriorityHigh
			if err := s.notifier.TicketEscalated(ctx, t, p); err != nil {
				s.logger.Warn("escalation notification failed", "ticket", protocol.ShortID(t.ID), "error", err)
			}
		}
	}

	overdue, err := s.store.Unresolved(ctx, protocol.PriorityHigh, now.Add(-EscalationWindow(protocol.PriorityHigh)))
	if err != nil {
		return raised, fmt.Errorf("devserver: escalate: %w", err)
	}
	if len(overdue) > 0 {
		s.logger.Warn("high priority tickets overdue", "count", len(overdue))
	}
	return raised, nil
}
