package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTicket(id, employee string, created time.Time) *protocol.Ticket {
	team := protocol.AssignedTeamFor(protocol.CategoryNetwork)
	return &protocol.Ticket{
		ID:           id,
		Source:       protocol.SourceChatbot,
		Employee:     employee,
		Subject:      "VPN keeps dropping",
		Description:  "VPN disconnects every ten minutes",
		Priority:     protocol.PriorityMedium,
		Category:     protocol.CategoryNetwork,
		AssignedTeam: &team,
		Status:       protocol.TicketOpen,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestCreateAndGetTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := s.CreateTicket(ctx, newTicket("t-001", "alice", created)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetTicket(ctx, "t-001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Employee != "alice" || got.Status != protocol.TicketOpen {
		t.Errorf("unexpected ticket %+v", got)
	}
	if got.Team() != "Network Team" {
		t.Errorf("team = %q", got.Team())
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
}

func TestCreateTicket_NullTeam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tk := newTicket("t-002", "bob", time.Now())
	tk.AssignedTeam = nil
	s.CreateTicket(ctx, tk)

	got, err := s.GetTicket(ctx, "t-002")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AssignedTeam != nil {
		t.Errorf("expected nil team, got %q", *got.AssignedTeam)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTicket(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListTickets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		s.CreateTicket(ctx, newTicket(fmt.Sprintf("a-%d", i), "Alice.Smith@corp", base.Add(time.Duration(i)*time.Minute)))
	}
	hw := newTicket("b-0", "bob", base)
	hw.Category = protocol.CategoryHardware
	hw.Status = protocol.TicketResolved
	s.CreateTicket(ctx, hw)

	t.Run("employee match is case-insensitive substring", func(t *testing.T) {
		got, err := s.ListTickets(ctx, protocol.TicketQuery{Employee: "alice"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3, got %d", len(got))
		}
		if got[0].ID != "a-2" || got[2].ID != "a-0" {
			t.Errorf("expected newest first, got %s..%s", got[0].ID, got[2].ID)
		}
	})

	t.Run("status and category", func(t *testing.T) {
		got, _ := s.ListTickets(ctx, protocol.TicketQuery{Status: protocol.TicketResolved, Category: protocol.CategoryHardware})
		if len(got) != 1 || got[0].ID != "b-0" {
			t.Errorf("unexpected %v", got)
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, _ := s.ListTickets(ctx, protocol.TicketQuery{Limit: 2})
		if len(got) != 2 {
			t.Errorf("expected 2, got %d", len(got))
		}
	})

	t.Run("empty result is non-nil", func(t *testing.T) {
		got, err := s.ListTickets(ctx, protocol.TicketQuery{Employee: "nobody"})
		if err != nil || got == nil || len(got) != 0 {
			t.Errorf("got %#v, %v", got, err)
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.CountTickets(ctx, protocol.TicketQuery{Status: protocol.TicketOpen})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 3 {
			t.Errorf("count = %d", n)
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Now().Add(-time.Hour)
	s.CreateTicket(ctx, newTicket("t-003", "alice", created))

	got, err := s.UpdateStatus(ctx, "t-003", protocol.TicketResolved)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != protocol.TicketResolved {
		t.Errorf("status = %q", got.Status)
	}
	if !got.UpdatedAt.After(created) {
		t.Errorf("updated_at not bumped: %v", got.UpdatedAt)
	}

	if _, err := s.UpdateStatus(ctx, "missing", protocol.TicketResolved); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUnresolvedAndPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := newTicket("old", "alice", now.Add(-30*time.Hour))
	fresh := newTicket("fresh", "alice", now.Add(-time.Hour))
	done := newTicket("done", "alice", now.Add(-30*time.Hour))
	done.Status = protocol.TicketResolved
	for _, tk := range []*protocol.Ticket{old, fresh, done} {
		s.CreateTicket(ctx, tk)
	}

	got, err := s.Unresolved(ctx, protocol.PriorityMedium, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("unresolved: %v", err)
	}
	if len(got) != 1 || got[0].ID != "old" {
		t.Fatalf("unexpected %v", got)
	}

	if err := s.UpdatePriority(ctx, "old", protocol.PriorityHigh); err != nil {
		t.Fatalf("update priority: %v", err)
	}
	tk, _ := s.GetTicket(ctx, "old")
	if tk.Priority != protocol.PriorityHigh {
		t.Errorf("priority = %q", tk.Priority)
	}
}

func TestArticles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	articles := []*protocol.KBArticle{
		{ID: "k1", Title: "Password Reset Guide", Content: "Visit the self-service portal to reset your password.", Category: protocol.CategoryAccess, Keywords: []string{"password", "reset"}, HelpfulCount: 10},
		{ID: "k2", Title: "VPN Setup", Content: "Download the VPN client and sign in.", Category: protocol.CategoryNetwork, Keywords: []string{"vpn"}},
		{ID: "k3", Title: "Account lockout", Content: "Too many password attempts lock the account.", Category: protocol.CategoryAccess, HelpfulCount: 2},
	}
	for _, a := range articles {
		if err := s.SaveArticle(ctx, a); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	t.Run("search ranks by term coverage", func(t *testing.T) {
		got, err := s.SearchArticles(ctx, "how do I reset my password", 3)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 results, got %d", len(got))
		}
		if got[0].ID != "k1" {
			t.Errorf("expected k1 first, got %s", got[0].ID)
		}
		if got[0].RelevanceScore == nil || *got[0].RelevanceScore != 1 {
			t.Errorf("k1 relevance = %v", got[0].RelevanceScore)
		}
		if *got[1].RelevanceScore != 0.5 {
			t.Errorf("k3 relevance = %v", *got[1].RelevanceScore)
		}
	})

	t.Run("search limit", func(t *testing.T) {
		got, _ := s.SearchArticles(ctx, "password vpn", 1)
		if len(got) != 1 {
			t.Errorf("expected 1 result, got %d", len(got))
		}
	})

	t.Run("search with only stopwords", func(t *testing.T) {
		got, err := s.SearchArticles(ctx, "how do I", 3)
		if err != nil || len(got) != 0 {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("views", func(t *testing.T) {
		if err := s.IncrementViews(ctx, "k2"); err != nil {
			t.Fatalf("increment: %v", err)
		}
		a, err := s.GetArticle(ctx, "k2")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if a.Views != 1 {
			t.Errorf("views = %d", a.Views)
		}
		if len(a.Keywords) != 1 || a.Keywords[0] != "vpn" {
			t.Errorf("keywords = %v", a.Keywords)
		}
		if err := s.IncrementViews(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("upsert keeps views", func(t *testing.T) {
		s.SaveArticle(ctx, &protocol.KBArticle{ID: "k2", Title: "VPN Setup v2", Content: "new", Category: protocol.CategoryNetwork})
		a, _ := s.GetArticle(ctx, "k2")
		if a.Title != "VPN Setup v2" || a.Views != 1 {
			t.Errorf("unexpected article %+v", a)
		}
	})
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
