package devserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func (s *Server) handleSearchKB(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("query"))
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, "query is required")
		return
	}
	limit := 3
	if l := params.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 10 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be between 1 and 10")
			return
		}
		limit = n
	}

	articles, err := s.store.SearchArticles(r.Context(), query, limit)
	if err != nil {
		s.writeServiceError(w, "Failed to search knowledge base", err)
		return
	}
	s.logger.Info("kb search", "query", query, "results", len(articles))
	writeJSON(w, http.StatusOK, nonNil(articles))
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "Failed to fetch article", err)
		return
	}
	if err := s.store.IncrementViews(r.Context(), id); err != nil {
		s.logger.Warn("increment views failed", "article", id, "error", err)
	}
	writeJSON(w, http.StatusOK, a)
}

func nonNil(a []protocol.KBArticle) []protocol.KBArticle {
	if a == nil {
		return []protocol.KBArticle{}
	}
	return a
}
