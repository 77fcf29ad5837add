package protocol

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved:
		return true
	}
	return false
}

// TicketPriority is the urgency assigned by the backend classifier.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// TicketCategory groups tickets by the team that handles them.
type TicketCategory string

const (
	CategoryNetwork  TicketCategory = "network"
	CategoryAccess   TicketCategory = "access"
	CategoryHardware TicketCategory = "hardware"
	CategorySoftware TicketCategory = "software"
	CategoryOther    TicketCategory = "other"
)

// Categories lists every category in display order.
var Categories = []TicketCategory{CategoryNetwork, CategoryAccess, CategoryHardware, CategorySoftware, CategoryOther}

func (c TicketCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// TicketSource is the intake channel a ticket arrived through.
type TicketSource string

const (
	SourceChatbot TicketSource = "chatbot"
	SourceEmail   TicketSource = "email"
	SourceGLPI    TicketSource = "glpi"
	SourceSolman  TicketSource = "solman"
)

func (s TicketSource) Valid() bool {
	switch s {
	case SourceChatbot, SourceEmail, SourceGLPI, SourceSolman:
		return true
	}
	return false
}

var assignedTeams = map[TicketCategory]string{
	CategoryNetwork:  "Network Team",
	CategoryAccess:   "IT Support",
	CategoryHardware: "Hardware Support",
	CategorySoftware: "Software Licensing",
	CategoryOther:    "General IT Support",
}

// AssignedTeamFor returns the support team that owns a category.
func AssignedTeamFor(c TicketCategory) string {
	if team, ok := assignedTeams[c]; ok {
		return team
	}
	return assignedTeams[CategoryOther]
}

// Ticket is a support request owned by the backend. Clients hold cached copies
// and replace them wholesale on every fetch.
type Ticket struct {
	ID           string         `json:"id"`
	Source       TicketSource   `json:"source,omitempty"`
	Employee     string         `json:"employee"`
	Subject      string         `json:"subject"`
	Description  string         `json:"description"`
	Priority     TicketPriority `json:"priority"`
	Category     TicketCategory `json:"category"`
	AssignedTeam *string        `json:"assigned_team"`
	Status       TicketStatus   `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Team returns the assigned team or "" when unassigned.
func (t Ticket) Team() string {
	if t.AssignedTeam == nil {
		return ""
	}
	return *t.AssignedTeam
}

// ShortID returns the first eight characters of the ticket ID.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// TicketQuery holds the server-side filters of a ticket list request.
// Zero values mean "no filter".
type TicketQuery struct {
	Employee string         `json:"employee,omitempty"`
	Status   TicketStatus   `json:"status,omitempty"`
	Category TicketCategory `json:"category,omitempty"`
	Limit    int            `json:"limit,omitempty"`
}

// StatusUpdate is the body of a ticket status change.
type StatusUpdate struct {
	Status TicketStatus `json:"status"`
}

// TicketCreate is the body of a ticket creation request. Priority and
// category are optional; the backend fills in defaults.
type TicketCreate struct {
	Source      TicketSource   `json:"source"`
	Employee    string         `json:"employee"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority,omitempty"`
	Category    TicketCategory `json:"category,omitempty"`
}
