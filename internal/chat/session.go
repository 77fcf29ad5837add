// Package chat implements the conversational session with the support assistant.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

const (
	// Greeting seeds every new session log.
	Greeting = "Hello! I'm the POWERGRID IT Support Assistant. I can help you with IT issues, answer questions, and create support tickets. How can I assist you today?"
	// FallbackReply is appended when a chat turn fails for any reason.
	FallbackReply = "Sorry, I encountered an error. Please try again or contact IT support at ext. 2222."
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable entry of the session log.
type Message struct {
	ID            string
	Role          Role
	Content       string
	TicketRef     string // set only when the turn created a ticket
	KBSuggestions []protocol.KBArticle
	AutoResolved  bool
	CreatedAt     time.Time
}

// Backend is the part of the ticketing client a Session needs.
type Backend interface {
	SendChat(ctx context.Context, message, employee string) (*protocol.ChatResult, error)
}

// Session owns an append-only message log and at most one in-flight request.
// It is safe for concurrent use; a Send issued while another is in flight is
// dropped, not queued.
type Session struct {
	// OnChange, if set, is called after every change to the log, the busy
	// flag or the composer input. It runs without the session lock held.
	OnChange func()

	employee string
	backend  Backend
	logger   *slog.Logger

	mu      sync.Mutex
	log     []Message
	input   string
	sending bool
	closed  bool
}

// New creates a session for employee, seeded with the greeting.
func New(employee string, b Backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		employee: employee,
		backend:  b,
		logger:   logger,
	}
	s.log = []Message{{
		ID:            newID(),
		Role:          RoleAssistant,
		Content:       Greeting,
		KBSuggestions: []protocol.KBArticle{},
		CreatedAt:     time.Now(),
	}}
	return s
}

// Employee returns the identity the session sends on behalf of.
func (s *Session) Employee() string { return s.employee }

// Send submits text as the next user turn and blocks until the reply has been
// merged into the log. It returns false, changing nothing, when text is blank,
// a request is already in flight or the session is closed.
func (s *Session) Send(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.sending || s.closed {
		s.mu.Unlock()
		return false
	}
	s.log = append(s.log, Message{
		ID:            newID(),
		Role:          RoleUser,
		Content:       text,
		KBSuggestions: []protocol.KBArticle{},
		CreatedAt:     time.Now(),
	})
	s.input = ""
	s.sending = true
	s.mu.Unlock()
	s.changed()

	res, err := s.backend.SendChat(ctx, text, s.employee)

	reply := Message{
		ID:            newID(),
		Role:          RoleAssistant,
		KBSuggestions: []protocol.KBArticle{},
		CreatedAt:     time.Now(),
	}
	if err != nil {
		s.logger.Warn("chat turn failed", "employee", s.employee, "error", err)
		reply.Content = FallbackReply
	} else {
		reply.Content = res.Response
		reply.AutoResolved = res.AutoResolved
		if res.TicketCreated {
			reply.TicketRef = res.TicketID
		}
		if len(res.KBSuggestions) > 0 {
			reply.KBSuggestions = append([]protocol.KBArticle(nil), res.KBSuggestions...)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("discarding reply for closed session", "employee", s.employee)
		return true
	}
	s.log = append(s.log, reply)
	s.sending = false
	s.mu.Unlock()
	s.changed()

	if reply.TicketRef != "" {
		s.logger.Info("ticket created from chat", "employee", s.employee, "ticket", reply.TicketRef)
	}
	return true
}

// SendInput sends the current composer input.
func (s *Session) SendInput(ctx context.Context) bool {
	return s.Send(ctx, s.Input())
}

// SetInput replaces the composer input.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
	s.changed()
}

// Input returns the composer input.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Messages returns a snapshot of the log, oldest first.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.log))
	copy(out, s.log)
	return out
}

// Last returns the newest message.
func (s *Session) Last() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log[len(s.log)-1]
}

// Close tears the session down. Replies arriving afterwards are dropped and
// further sends are rejected.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

// newID returns a time-ordered UUID; v7 values generated by one process are
// strictly increasing.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
