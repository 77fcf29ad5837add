package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/h1v3-io/helpdesk/internal/classify"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

const greetingReply = "Hello! I'm your IT support assistant. Please describe any technical issues you're experiencing, and I'll help you find a solution or create a support ticket."

// Short or low-confidence messages without support vocabulary get the
// greeting instead of a ticket.
const (
	shortMessageLen = 20
	minConfidence   = 0.3
	maxSubjectLen   = 100
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.Employee) == "" {
		writeError(w, http.StatusUnprocessableEntity, "message and employee are required")
		return
	}
	ctx := r.Context()

	c := classify.Classify(req.Message)
	trimmed := strings.TrimSpace(req.Message)
	if (utf8.RuneCountInString(trimmed) <= shortMessageLen || c.Confidence < minConfidence) && !classify.HasITContext(trimmed) {
		writeJSON(w, http.StatusOK, protocol.ChatResult{
			Response:      greetingReply,
			KBSuggestions: []protocol.KBArticle{},
			AutoResolved:  true,
		})
		return
	}

	articles, err := s.store.SearchArticles(ctx, req.Message, s.cfg.KBLimit)
	if err != nil {
		s.writeServiceError(w, "Chatbot error", err)
		return
	}
	articles = nonNil(articles)

	if c.AutoResolve {
		writeJSON(w, http.StatusOK, protocol.ChatResult{
			Response:      *c.ResolutionMessage,
			KBSuggestions: articles,
			AutoResolved:  true,
		})
		return
	}

	subject := req.Message
	if r := []rune(subject); len(r) > maxSubjectLen {
		subject = string(r[:maxSubjectLen])
	}
	t, err := s.CreateTicket(ctx, protocol.TicketCreate{
		Source:      protocol.SourceChatbot,
		Employee:    req.Employee,
		Subject:     subject,
		Description: req.Message,
		Priority:    c.Priority,
		Category:    c.Category,
	})
	if err != nil {
		s.writeServiceError(w, "Chatbot error", err)
		return
	}

	reply := fmt.Sprintf("I've created a support ticket for you (ID: %s). Your issue has been categorized as '%s' with '%s' priority and assigned to %s. You'll receive updates via email.",
		t.ID, c.Category, c.Priority, t.Team())
	if len(articles) > 0 {
		reply += "\n\nHere are some relevant knowledge base articles that might help:"
	}
	writeJSON(w, http.StatusOK, protocol.ChatResult{
		Response:      reply,
		TicketCreated: true,
		TicketID:      t.ID,
		KBSuggestions: articles,
	})
}
