package protocol

import "time"

// ChatRequest is one user turn sent to the assistant.
type ChatRequest struct {
	Message  string `json:"message"`
	Employee string `json:"employee"`
}

// ChatResult is the assistant's reply to a ChatRequest.
type ChatResult struct {
	Response      string      `json:"response"`
	TicketCreated bool        `json:"ticket_created"`
	TicketID      string      `json:"ticket_id,omitempty"`
	KBSuggestions []KBArticle `json:"kb_suggestions"`
	AutoResolved  bool        `json:"auto_resolved"`
}

// ClassifyRequest asks the backend to classify free text.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// Classification is the backend's reading of a support request.
type Classification struct {
	Category          TicketCategory `json:"category"`
	Priority          TicketPriority `json:"priority"`
	Confidence        float64        `json:"confidence"`
	AutoResolve       bool           `json:"auto_resolve"`
	ResolutionMessage *string        `json:"resolution_message"`
}

// Health is the backend liveness report.
type Health struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Healthy reports whether the backend considers itself operational.
func (h Health) Healthy() bool { return h.Status == "healthy" }
