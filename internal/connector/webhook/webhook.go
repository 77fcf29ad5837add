// Package webhook accepts tickets from non-chat intake systems (email
// gateways, GLPI, SAP Solution Manager) over signed HTTP callbacks.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

const maxBody = 1 << 20

// Config maps intake sources to their credentials.
type Config struct {
	Endpoints map[string]EndpointConfig
}

// EndpointConfig authenticates one source. Secret enables HMAC-SHA256
// signature checks (X-Hub-Signature-256 or X-Signature-256); otherwise
// BearerToken is compared against the Authorization header. With neither
// set the endpoint is open.
type EndpointConfig struct {
	Secret      string
	BearerToken string
}

// Payload is the body an intake system posts.
type Payload struct {
	Employee    string                  `json:"employee"`
	Subject     string                  `json:"subject,omitempty"`
	Description string                  `json:"description"`
	Priority    protocol.TicketPriority `json:"priority,omitempty"`
	Category    protocol.TicketCategory `json:"category,omitempty"`
	Reference   string                  `json:"reference,omitempty"` // id in the source system
}

// TicketSink creates tickets. The development backend and
// *backend.Client both satisfy it.
type TicketSink interface {
	CreateTicket(ctx context.Context, req protocol.TicketCreate) (*protocol.Ticket, error)
}

// Handler serves POST /webhook/{source}.
type Handler struct {
	config Config
	sink   TicketSink
	logger *slog.Logger
}

// New creates an intake handler.
func New(cfg Config, sink TicketSink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{config: cfg, sink: sink, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	source := sourceFromPath(r.URL.Path)
	endpoint, ok := h.config.Endpoints[source]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown intake source: %s", source))
		return
	}
	ts := protocol.TicketSource(source)
	if !ts.Valid() || ts == protocol.SourceChatbot {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown intake source: %s", source))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !authenticate(r, endpoint, body) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	req, err := p.ticketCreate(ts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	t, err := h.sink.CreateTicket(r.Context(), req)
	if err != nil {
		h.logger.Error("webhook intake failed", "source", source, "reference", p.Reference, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create ticket")
		return
	}
	h.logger.Info("ticket received", "source", source, "ticket", protocol.ShortID(t.ID), "reference", p.Reference)
	writeJSON(w, http.StatusCreated, t)
}

func (p Payload) ticketCreate(source protocol.TicketSource) (protocol.TicketCreate, error) {
	employee := strings.TrimSpace(p.Employee)
	desc := strings.TrimSpace(p.Description)
	if employee == "" {
		return protocol.TicketCreate{}, fmt.Errorf("employee is required")
	}
	if desc == "" {
		return protocol.TicketCreate{}, fmt.Errorf("description is required")
	}
	if p.Priority != "" && !p.Priority.Valid() {
		return protocol.TicketCreate{}, fmt.Errorf("invalid priority %q", p.Priority)
	}
	if p.Category != "" && !p.Category.Valid() {
		return protocol.TicketCreate{}, fmt.Errorf("invalid category %q", p.Category)
	}

	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		subject, _, _ = strings.Cut(desc, "\n")
	}
	if r := []rune(subject); len(r) > 100 {
		subject = string(r[:100])
	}
	if p.Reference != "" {
		desc = fmt.Sprintf("%s\n\n[%s reference: %s]", desc, source, p.Reference)
	}

	return protocol.TicketCreate{
		Source:      source,
		Employee:    employee,
		Subject:     subject,
		Description: desc,
		Priority:    p.Priority,
		Category:    p.Category,
	}, nil
}

func authenticate(r *http.Request, endpoint EndpointConfig, body []byte) bool {
	if endpoint.Secret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if sig == "" {
			sig = r.Header.Get("X-Signature-256")
		}
		return verifyHMAC(body, endpoint.Secret, sig)
	}
	if endpoint.BearerToken != "" {
		return r.Header.Get("Authorization") == "Bearer "+endpoint.BearerToken
	}
	return true
}

// verifyHMAC checks a "sha256=<hex>" signature over body.
func verifyHMAC(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign returns the signature header value an intake system sends for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func sourceFromPath(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
