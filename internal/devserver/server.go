// Package devserver is a self-contained ticketing backend that speaks the
// same HTTP API the client consumes. It stores tickets and knowledge-base
// articles in SQLite and answers chat turns with keyword classification.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/h1v3-io/helpdesk/internal/connector/webhook"
	"github.com/h1v3-io/helpdesk/internal/logbuf"
	"github.com/h1v3-io/helpdesk/internal/store"
	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// LogQuerier serves captured log entries at /debug/logs.
type LogQuerier interface {
	Query(f logbuf.Filter) []logbuf.Entry
}

// Config holds development backend settings.
type Config struct {
	Host        string
	Port        int
	APIKey      string // Bearer key required on every route except /health; "" disables auth
	CORSOrigins []string
	Webhooks    map[string]webhook.EndpointConfig
	KBLimit     int // suggestions per chat turn, default 3
}

// Server is the development backend.
type Server struct {
	store    store.Store
	cfg      Config
	logger   *slog.Logger
	logs     LogQuerier
	notifier Notifier
	now      func() time.Time
	bg       sync.WaitGroup
	srv      *http.Server
}

// Option customises a Server.
type Option func(*Server)

// WithNotifier reports ticket creations and status changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Server) { s.notifier = n }
}

// NewServer creates a backend over st. logs may be nil.
func NewServer(st store.Store, cfg Config, logger *slog.Logger, logs LogQuerier, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.KBLimit <= 0 {
		cfg.KBLimit = 3
	}
	s := &Server{
		store:    st,
		cfg:      cfg,
		logger:   logger,
		logs:     logs,
		notifier: nopNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/tickets", s.handleCreateTicket).Methods(http.MethodPost)
	r.HandleFunc("/tickets", s.handleListTickets).Methods(http.MethodGet)
	r.HandleFunc("/tickets/{id}", s.handleGetTicket).Methods(http.MethodGet)
	r.HandleFunc("/tickets/{id}/status", s.handleUpdateStatus).Methods(http.MethodPatch)
	r.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	r.HandleFunc("/kb/search", s.handleSearchKB).Methods(http.MethodGet)
	r.HandleFunc("/kb/{id}", s.handleGetArticle).Methods(http.MethodGet)
	r.HandleFunc("/chatbot", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/debug/logs", s.handleLogs).Methods(http.MethodGet)
	if len(cfg.Webhooks) > 0 {
		r.Handle("/webhook/{source}", webhook.New(webhook.Config{Endpoints: cfg.Webhooks}, s, logger)).Methods(http.MethodPost)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	r.Use(s.requireAuth, s.logRequests)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start listens until ctx is cancelled, then drains in-flight requests and
// background notifications.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("dev backend starting", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	s.bg.Wait()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("devserver: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Wait blocks until background notifications have been delivered.
func (s *Server) Wait() {
	s.bg.Wait()
}

// --- Middleware ---

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Intake sources carry their own credentials.
		if s.cfg.APIKey == "" || r.URL.Path == "/health" || strings.HasPrefix(r.URL.Path, "/webhook/") {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start),
		)
	})
}

// --- Service endpoints ---

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "POWERGRID AI Ticketing System API",
		"version": "1.0.0",
		"status":  "operational",
		"endpoints": map[string]string{
			"tickets":   "/tickets",
			"classify":  "/classify",
			"kb_search": "/kb/search",
			"chatbot":   "/chatbot",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := protocol.Health{Status: "healthy", Database: "connected", Timestamp: s.now()}
	if err := s.store.Ping(r.Context()); err != nil {
		h = protocol.Health{Status: "unhealthy", Database: "disconnected", Error: err.Error(), Timestamp: s.now()}
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	q := r.URL.Query()
	f := logbuf.Filter{Limit: 200, MinLevel: slog.LevelDebug, Contains: q.Get("q")}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	if lvl := q.Get("level"); lvl != "" {
		f.MinLevel = logbuf.ParseLevel(lvl)
	}
	if ms, err := strconv.ParseInt(q.Get("since"), 10, 64); err == nil {
		f.Since = time.UnixMilli(ms)
	}
	writeJSON(w, http.StatusOK, s.logs.Query(f))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError uses the {"detail": ...} body the client shows users.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

// background runs fn detached from the request so notifications do not
// delay the response.
func (s *Server) background(ctx context.Context, fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
