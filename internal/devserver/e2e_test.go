package devserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/h1v3-io/helpdesk/internal/backend"
	"github.com/h1v3-io/helpdesk/internal/chat"
	"github.com/h1v3-io/helpdesk/internal/devserver"
	"github.com/h1v3-io/helpdesk/internal/store"
	"github.com/h1v3-io/helpdesk/internal/ticket"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func startBackend(t *testing.T, apiKey string) *backend.Client {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "helpdesk.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	srv := devserver.NewServer(st, devserver.Config{APIKey: apiKey}, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Wait()
	})
	return backend.New(backend.WithBaseURL(ts.URL), backend.WithAPIKey(apiKey))
}

func TestChatToResolve(t *testing.T) {
	client := startBackend(t, "k")
	ctx := context.Background()

	session := chat.New("alice", client, nil)
	if !session.Send(ctx, "The VPN is down and not working from the Gurgaon office") {
		t.Fatal("send rejected")
	}
	reply := session.Last()
	if reply.Role != chat.RoleAssistant || reply.TicketRef == "" {
		t.Fatalf("reply = %+v", reply)
	}

	coll := ticket.NewCollection(client, nil)
	defer coll.Close()
	if err := coll.Refresh(ctx, ticket.Filter{}.ServerQuery("alice")); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tickets := coll.Tickets()
	if len(tickets) != 1 || tickets[0].ID != reply.TicketRef {
		t.Fatalf("tickets = %+v", tickets)
	}
	if tickets[0].Team() != "Network Team" {
		t.Errorf("team = %q", tickets[0].Team())
	}

	if err := coll.Resolve(ctx, reply.TicketRef); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ := coll.Get(reply.TicketRef)
	if got.Status != protocol.TicketResolved {
		t.Errorf("status after resolve = %q", got.Status)
	}
	if coll.Pending(reply.TicketRef) {
		t.Error("ticket still pending")
	}

	open := ticket.Filter{Status: string(protocol.TicketOpen)}
	if err := coll.Refresh(ctx, open.ServerQuery("alice")); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n := len(coll.Tickets()); n != 0 {
		t.Errorf("open tickets = %d", n)
	}
}

func TestGreetingDoesNotCreateTicket(t *testing.T) {
	client := startBackend(t, "")
	ctx := context.Background()

	session := chat.New("bob", client, nil)
	session.Send(ctx, "hi")
	if last := session.Last(); last.TicketRef != "" || !last.AutoResolved {
		t.Errorf("reply = %+v", last)
	}
	tickets, err := client.ListTickets(ctx, protocol.TicketQuery{Employee: "bob"})
	if err != nil || len(tickets) != 0 {
		t.Errorf("tickets = %v, %v", tickets, err)
	}
}

func TestClientSeesRequestFailed(t *testing.T) {
	client := startBackend(t, "")
	_, err := client.SetTicketStatus(context.Background(), "missing", protocol.TicketResolved)
	if !errors.Is(err, backend.ErrRequestFailed) {
		t.Fatalf("err = %v", err)
	}
	if backend.StatusCode(err) != http.StatusNotFound {
		t.Errorf("status = %d", backend.StatusCode(err))
	}
}
