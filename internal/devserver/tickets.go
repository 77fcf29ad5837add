package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/h1v3-io/helpdesk/internal/classify"
	"github.com/h1v3-io/helpdesk/internal/store"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// validationError maps to 422, matching the reference API.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// CreateTicket validates req, fills in a missing category or priority from
// the classifier, assigns the team and stores the ticket. It is shared by
// POST /tickets, chat turns and webhook intake.
func (s *Server) CreateTicket(ctx context.Context, req protocol.TicketCreate) (*protocol.Ticket, error) {
	req.Employee = strings.TrimSpace(req.Employee)
	req.Subject = strings.TrimSpace(req.Subject)
	switch {
	case !req.Source.Valid():
		return nil, invalid("source must be one of chatbot, email, glpi, solman")
	case req.Employee == "" || utf8.RuneCountInString(req.Employee) > 255:
		return nil, invalid("employee must be 1 to 255 characters")
	case req.Subject == "" || utf8.RuneCountInString(req.Subject) > 500:
		return nil, invalid("subject must be 1 to 500 characters")
	case strings.TrimSpace(req.Description) == "":
		return nil, invalid("description is required")
	case req.Priority != "" && !req.Priority.Valid():
		return nil, invalid("priority must be one of low, medium, high")
	case req.Category != "" && !req.Category.Valid():
		return nil, invalid("category must be one of network, access, hardware, software, other")
	}

	if req.Priority == "" || req.Category == "" {
		c := classify.Classify(req.Subject + " " + req.Description)
		if req.Priority == "" {
			req.Priority = c.Priority
		}
		if req.Category == "" {
			req.Category = c.Category
		}
	}

	team := protocol.AssignedTeamFor(req.Category)
	now := s.now().UTC()
	t := &protocol.Ticket{
		ID:           uuid.NewString(),
		Source:       req.Source,
		Employee:     req.Employee,
		Subject:      req.Subject,
		Description:  req.Description,
		Priority:     req.Priority,
		Category:     req.Category,
		AssignedTeam: &team,
		Status:       protocol.TicketOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("devserver: create ticket: %w", err)
	}

	s.logger.Info("ticket created",
		"ticket", protocol.ShortID(t.ID),
		"source", t.Source,
		"category", t.Category,
		"priority", t.Priority,
	)
	created := *t
	s.background(ctx, func(ctx context.Context) {
		if err := s.notifier.TicketCreated(ctx, created); err != nil {
			s.logger.Warn("ticket notification failed", "ticket", protocol.ShortID(created.ID), "error", err)
		}
	})
	return t, nil
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req protocol.TicketCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	t, err := s.CreateTicket(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "Failed to create ticket", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := protocol.TicketQuery{
		Employee: params.Get("employee"),
		Status:   protocol.TicketStatus(params.Get("status")),
		Category: protocol.TicketCategory(params.Get("category")),
		Limit:    store.DefaultListLimit,
	}
	if q.Status != "" && !q.Status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "status must be one of open, in_progress, resolved")
		return
	}
	if q.Category != "" && !q.Category.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "category must be one of network, access, hardware, software, other")
		return
	}
	if l := params.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > store.MaxListLimit {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be between 1 and %d", store.MaxListLimit))
			return
		}
		q.Limit = n
	}

	tickets, err := s.store.ListTickets(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, "Failed to fetch tickets", err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTicket(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, "Failed to fetch ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var upd protocol.StatusUpdate
	if err := decodeJSON(r, &upd); err != nil || !upd.Status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "status must be one of open, in_progress, resolved")
		return
	}

	current, err := s.store.GetTicket(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "Failed to update ticket", err)
		return
	}
	updated, err := s.store.UpdateStatus(r.Context(), id, upd.Status)
	if err != nil {
		s.writeServiceError(w, "Failed to update ticket", err)
		return
	}

	s.logger.Info("ticket status changed",
		"ticket", protocol.ShortID(id),
		"from", current.Status,
		"to", updated.Status,
	)
	old, snapshot := current.Status, *updated
	s.background(r.Context(), func(ctx context.Context) {
		if err := s.notifier.TicketUpdated(ctx, snapshot, old); err != nil {
			s.logger.Warn("ticket notification failed", "ticket", protocol.ShortID(snapshot.ID), "error", err)
		}
	})
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req protocol.ClassifyRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return
	}
	c := classify.Classify(req.Text)
	s.logger.Debug("classified", "category", c.Category, "priority", c.Priority, "confidence", c.Confidence)
	writeJSON(w, http.StatusOK, c)
}

// writeServiceError maps store and validation errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, action string, err error) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.msg)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		s.logger.Error(strings.ToLower(action), "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", action, err))
	}
}
