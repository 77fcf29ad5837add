package frontdesk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/h1v3-io/helpdesk/internal/chat"
	"github.com/h1v3-io/helpdesk/internal/connector"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	mu       sync.Mutex
	tickets  []protocol.Ticket
	chats    []protocol.ChatRequest
	chatErr  error
	chatGate chan struct{}
}

func (f *fakeBackend) SendChat(_ context.Context, message, employee string) (*protocol.ChatResult, error) {
	f.mu.Lock()
	f.chats = append(f.chats, protocol.ChatRequest{Message: message, Employee: employee})
	gate, err := f.chatGate, f.chatErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	score := 0.87
	return &protocol.ChatResult{
		Response:      "I've created ticket for you.",
		TicketCreated: true,
		TicketID:      "0c5f8e2a-1111-2222-3333-444455556666",
		KBSuggestions: []protocol.KBArticle{{ID: "kb1", Title: "VPN Setup", RelevanceScore: &score}},
	}, nil
}

func (f *fakeBackend) ListTickets(_ context.Context, q protocol.TicketQuery) ([]protocol.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Ticket
	for _, t := range f.tickets {
		if q.Employee == "" || t.Employee == q.Employee {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeBackend) SetTicketStatus(_ context.Context, id string, status protocol.TicketStatus) (*protocol.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tickets {
		if f.tickets[i].ID == id {
			f.tickets[i].Status = status
			t := f.tickets[i]
			return &t, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeBackend) status(id string) protocol.TicketStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ID == id {
			return t.Status
		}
	}
	return ""
}

type fakeConnector struct {
	mu   sync.Mutex
	sent []connector.OutboundMessage
}

func (c *fakeConnector) Name() string { return "fake" }
func (c *fakeConnector) Start(ctx context.Context) error { <-ctx.Done(); return nil }
func (c *fakeConnector) Stop() error { return nil }

func (c *fakeConnector) Send(_ context.Context, msg connector.OutboundMessage) error {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConnector) last(t *testing.T) connector.OutboundMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return c.sent[len(c.sent)-1]
}

func newDesk(b *fakeBackend) (*Desk, *fakeConnector) {
	d := New(b, nil)
	c := &fakeConnector{}
	d.Attach(c)
	return d, c
}

func inbound(sender, text string) connector.InboundMessage {
	return connector.InboundMessage{Channel: "fake", SenderID: sender, SenderName: sender + "@corp", ChatID: "room", Content: text}
}

func TestHandleInbound_ChatReply(t *testing.T) {
	b := &fakeBackend{}
	d, c := newDesk(b)
	defer d.Close()

	if err := d.HandleInbound(context.Background(), inbound("u1", "my vpn is down")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got := c.last(t)
	if got.ChatID != "room" {
		t.Errorf("chat id = %q", got.ChatID)
	}
	for _, want := range []string{"I've created ticket", "`#0c5f8e2a`", "VPN Setup (87% match)"} {
		if !strings.Contains(got.Content, want) {
			t.Errorf("reply missing %q:\n%s", want, got.Content)
		}
	}
	if len(b.chats) != 1 || b.chats[0].Employee != "u1@corp" {
		t.Errorf("unexpected chats %+v", b.chats)
	}
}

func TestHandleInbound_BackendFailure(t *testing.T) {
	b := &fakeBackend{chatErr: errors.New("boom")}
	d, c := newDesk(b)
	defer d.Close()

	d.HandleInbound(context.Background(), inbound("u1", "printer broken"))
	if got := c.last(t).Content; got != chat.FallbackReply {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleInbound_SessionPerSender(t *testing.T) {
	var created []string
	b := &fakeBackend{}
	d, _ := newDesk(b)
	defer d.Close()
	d.OnSessionCreated = func(key, employee string) { created = append(created, employee) }

	ctx := context.Background()
	d.HandleInbound(ctx, inbound("u1", "vpn down"))
	d.HandleInbound(ctx, inbound("u2", "vpn down"))
	d.HandleInbound(ctx, inbound("u1", "still down"))

	if got := d.Sessions(); len(got) != 2 {
		t.Fatalf("sessions = %v", got)
	}
	if len(created) != 2 || created[0] != "u1@corp" || created[1] != "u2@corp" {
		t.Errorf("created = %v", created)
	}
}

func TestHandleInbound_BusyWhileInFlight(t *testing.T) {
	b := &fakeBackend{chatGate: make(chan struct{})}
	d, c := newDesk(b)
	defer d.Close()

	done := make(chan error, 1)
	go func() { done <- d.HandleInbound(context.Background(), inbound("u1", "vpn down")) }()
	waitForChats(t, b, 1)

	d.HandleInbound(context.Background(), inbound("u1", "hello?"))
	if got := c.last(t).Content; got != busyReply {
		t.Errorf("reply = %q", got)
	}

	close(b.chatGate)
	if err := <-done; err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestHandleInbound_ResetWhileInFlight(t *testing.T) {
	b := &fakeBackend{chatGate: make(chan struct{})}
	d, c := newDesk(b)
	defer d.Close()

	done := make(chan error, 1)
	go func() { done <- d.HandleInbound(context.Background(), inbound("u1", "vpn down")) }()
	waitForChats(t, b, 1)

	if err := d.HandleInbound(context.Background(), inbound("u1", "/reset")); err != nil {
		t.Fatalf("reset: %v", err)
	}
	close(b.chatGate)
	if err := <-done; err != nil {
		t.Fatalf("in-flight turn after reset: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) != 1 || c.sent[0].Content != chat.Greeting {
		t.Errorf("sent = %+v, want only the reset greeting", c.sent)
	}
}

func waitForChats(t *testing.T, b *fakeBackend, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		b.mu.Lock()
		got := len(b.chats)
		b.mu.Unlock()
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d chat requests reached the backend, want %d", got, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCommands(t *testing.T) {
	team := "Network Team"
	b := &fakeBackend{tickets: []protocol.Ticket{
		{ID: "aaaa1111-0000", Employee: "u1@corp", Subject: "VPN down", Status: protocol.TicketOpen, Priority: protocol.PriorityHigh, AssignedTeam: &team},
		{ID: "aaaa2222-0000", Employee: "u1@corp", Subject: "Printer", Status: protocol.TicketInProgress, Priority: protocol.PriorityLow},
		{ID: "bbbb3333-0000", Employee: "u1@corp", Subject: "Old", Status: protocol.TicketResolved, Priority: protocol.PriorityLow},
		{ID: "cccc4444-0000", Employee: "u2@corp", Subject: "Other", Status: protocol.TicketOpen, Priority: protocol.PriorityLow},
	}}
	d, c := newDesk(b)
	defer d.Close()
	ctx := context.Background()

	t.Run("help", func(t *testing.T) {
		d.HandleInbound(ctx, inbound("u1", "/help"))
		if !strings.Contains(c.last(t).Content, "/resolve") {
			t.Errorf("help = %q", c.last(t).Content)
		}
	})

	t.Run("tickets lists only own unresolved", func(t *testing.T) {
		d.HandleInbound(ctx, inbound("u1", "/tickets@helpdesk_bot"))
		got := c.last(t).Content
		if !strings.Contains(got, "(2)") || !strings.Contains(got, "`#aaaa1111`") || !strings.Contains(got, "in progress") {
			t.Errorf("tickets = %q", got)
		}
		if strings.Contains(got, "bbbb3333") || strings.Contains(got, "cccc4444") {
			t.Errorf("unexpected tickets listed: %q", got)
		}
	})

	t.Run("resolve ambiguous prefix", func(t *testing.T) {
		d.HandleInbound(ctx, inbound("u1", "/resolve aaaa"))
		if !strings.Contains(c.last(t).Content, "matches 2 tickets") {
			t.Errorf("reply = %q", c.last(t).Content)
		}
	})

	t.Run("resolve by short id", func(t *testing.T) {
		d.HandleInbound(ctx, inbound("u1", "/resolve #aaaa1111"))
		if !strings.Contains(c.last(t).Content, "now marked as resolved") {
			t.Errorf("reply = %q", c.last(t).Content)
		}
		if b.status("aaaa1111-0000") != protocol.TicketResolved {
			t.Error("ticket not resolved on the backend")
		}
	})

	t.Run("resolve someone else's ticket", func(t *testing.T) {
		d.HandleInbound(ctx, inbound("u1", "/resolve cccc4444"))
		if !strings.Contains(c.last(t).Content, "no ticket matching") {
			t.Errorf("reply = %q", c.last(t).Content)
		}
	})

	t.Run("resolve already resolved", func(t *testing.T) {
		d.HandleInbound(ctx, inbound("u1", "/resolve bbbb"))
		if !strings.Contains(c.last(t).Content, "already resolved") {
			t.Errorf("reply = %q", c.last(t).Content)
		}
	})

	t.Run("reset closes the session", func(t *testing.T) {
		var closed []string
		d.OnSessionClosed = func(key string) { closed = append(closed, key) }
		d.HandleInbound(ctx, inbound("u1", "/reset"))
		if len(closed) != 1 || closed[0] != "fake:room:u1" {
			t.Errorf("closed = %v", closed)
		}
		if c.last(t).Content != chat.Greeting {
			t.Errorf("reply = %q", c.last(t).Content)
		}
	})
}

func TestHandleInbound_NoConnector(t *testing.T) {
	d := New(&fakeBackend{}, nil)
	defer d.Close()
	if err := d.HandleInbound(context.Background(), inbound("u1", "/help")); err == nil {
		t.Error("expected error without an attached connector")
	}
}

func TestHandleInbound_IgnoresBlank(t *testing.T) {
	b := &fakeBackend{}
	d, c := newDesk(b)
	defer d.Close()
	d.HandleInbound(context.Background(), inbound("u1", "   "))
	if len(c.sent) != 0 || len(d.Sessions()) != 0 {
		t.Error("blank message should be ignored")
	}
}

func TestRender(t *testing.T) {
	got := Render(chat.Message{Content: "Try this."})
	if got != "Try this." {
		t.Errorf("render = %q", got)
	}
	if RenderTickets(nil) != "You have no open tickets." {
		t.Errorf("empty list = %q", RenderTickets(nil))
	}
}

type fakeKB struct {
	queries []string
	err     error
}

func (f *fakeKB) SearchKB(_ context.Context, query string, limit int) ([]protocol.KBArticle, error) {
	f.queries = append(f.queries, fmt.Sprintf("%s/%d", query, limit))
	if f.err != nil {
		return nil, f.err
	}
	score := 0.5
	return []protocol.KBArticle{{ID: "kb1", Title: "Password Reset Guide", Content: "Visit the portal.\nMore steps.", RelevanceScore: &score}}, nil
}

func TestKBCommand(t *testing.T) {
	src := &fakeKB{}
	d := New(&fakeBackend{}, nil, WithKB(src, 2))
	c := &fakeConnector{}
	d.Attach(c)
	defer d.Close()

	d.HandleInbound(context.Background(), inbound("u1", "/kb reset password"))
	got := c.last(t).Content
	if !strings.Contains(got, "**Password Reset Guide** (50% match)\n  Visit the portal.") {
		t.Errorf("reply = %q", got)
	}
	if len(src.queries) != 1 || src.queries[0] != "reset password/2" {
		t.Errorf("queries = %v", src.queries)
	}

	src.err = errors.New("down")
	d.HandleInbound(context.Background(), inbound("u1", "/kb vpn"))
	if !strings.Contains(c.last(t).Content, "couldn't search") {
		t.Errorf("reply = %q", c.last(t).Content)
	}
}

func TestKBCommand_Disabled(t *testing.T) {
	d, c := newDesk(&fakeBackend{})
	defer d.Close()
	d.HandleInbound(context.Background(), inbound("u1", "/kb vpn"))
	if !strings.Contains(c.last(t).Content, "not available") {
		t.Errorf("reply = %q", c.last(t).Content)
	}
}
