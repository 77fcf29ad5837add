// Package backend is the HTTP client for the IT-support ticketing service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000"

const maxErrorBody = 512

// Client talks to the ticketing backend. Every method performs exactly one
// HTTP round trip; there is no retry, caching or queuing.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the backend base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client. Its timeout bounds every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithAPIKey sends the key as a Bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a backend client.
func New(opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SendChat submits one chat turn on behalf of employee.
func (c *Client) SendChat(ctx context.Context, message, employee string) (*protocol.ChatResult, error) {
	var res protocol.ChatResult
	req := protocol.ChatRequest{Message: message, Employee: employee}
	if err := c.do(ctx, "send chat", http.MethodPost, "/chatbot", nil, req, &res); err != nil {
		return nil, err
	}
	if res.KBSuggestions == nil {
		res.KBSuggestions = []protocol.KBArticle{}
	}
	return &res, nil
}

// ListTickets fetches tickets matching q. Empty fields are not sent.
func (c *Client) ListTickets(ctx context.Context, q protocol.TicketQuery) ([]protocol.Ticket, error) {
	params := url.Values{}
	if q.Employee != "" {
		params.Set("employee", q.Employee)
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Category != "" {
		params.Set("category", string(q.Category))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var tickets []protocol.Ticket
	if err := c.do(ctx, "list tickets", http.MethodGet, "/tickets", params, nil, &tickets); err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []protocol.Ticket{}
	}
	return tickets, nil
}

// GetTicket fetches one ticket.
func (c *Client) GetTicket(ctx context.Context, id string) (*protocol.Ticket, error) {
	var t protocol.Ticket
	if err := c.do(ctx, "get ticket", http.MethodGet, "/tickets/"+url.PathEscape(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SetTicketStatus requests a status transition and returns the updated ticket.
func (c *Client) SetTicketStatus(ctx context.Context, id string, status protocol.TicketStatus) (*protocol.Ticket, error) {
	var t protocol.Ticket
	body := protocol.StatusUpdate{Status: status}
	if err := c.do(ctx, "set ticket status", http.MethodPatch, "/tickets/"+url.PathEscape(id)+"/status", nil, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTicket files a ticket directly, bypassing the assistant.
func (c *Client) CreateTicket(ctx context.Context, req protocol.TicketCreate) (*protocol.Ticket, error) {
	var t protocol.Ticket
	if err := c.do(ctx, "create ticket", http.MethodPost, "/tickets", nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SearchKB returns up to limit knowledge-base articles matching query.
func (c *Client) SearchKB(ctx context.Context, query string, limit int) ([]protocol.KBArticle, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))

	var articles []protocol.KBArticle
	if err := c.do(ctx, "search kb", http.MethodGet, "/kb/search", params, nil, &articles); err != nil {
		return nil, err
	}
	if articles == nil {
		articles = []protocol.KBArticle{}
	}
	return articles, nil
}

// GetKBArticle fetches one article. The backend counts this as a view.
func (c *Client) GetKBArticle(ctx context.Context, id string) (*protocol.KBArticle, error) {
	var a protocol.KBArticle
	if err := c.do(ctx, "get kb article", http.MethodGet, "/kb/"+url.PathEscape(id), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Classify asks the backend how it would categorise text.
func (c *Client) Classify(ctx context.Context, text string) (*protocol.Classification, error) {
	var cl protocol.Classification
	if err := c.do(ctx, "classify", http.MethodPost, "/classify", nil, protocol.ClassifyRequest{Text: text}, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// Health reports backend liveness.
func (c *Client) Health(ctx context.Context) (*protocol.Health, error) {
	var h protocol.Health
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, in, out any) error {
	fail := func(status int, body string, err error) error {
		return &RequestError{Op: op, Method: method, Path: path, StatusCode: status, Body: body, Err: err}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fail(0, "", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fail(0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "op", op, "error", err)
		return fail(0, "", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, "", err)
	}
	c.logger.Debug("backend request", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, truncate(string(respBody), maxErrorBody), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fail(resp.StatusCode, "", err)
	}
	return nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
