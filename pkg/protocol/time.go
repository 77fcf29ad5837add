package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layouts accepted for backend timestamps. Backends that write naive
// ISO-8601 (no offset) are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a backend timestamp in any accepted layout.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("protocol: unrecognised timestamp %q", s)
}

// Timestamp decodes a JSON timestamp with or without a UTC offset. null and
// "" decode to the zero time.
type Timestamp time.Time

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("protocol: timestamp: %w", err)
	}
	if s == "" {
		*ts = Timestamp{}
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	*ts = Timestamp(t)
	return nil
}

type ticketFields Ticket

func (t *Ticket) UnmarshalJSON(data []byte) error {
	aux := struct {
		*ticketFields
		CreatedAt Timestamp `json:"created_at"`
		UpdatedAt Timestamp `json:"updated_at"`
	}{ticketFields: (*ticketFields)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.CreatedAt = time.Time(aux.CreatedAt)
	t.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}

type healthFields Health

func (h *Health) UnmarshalJSON(data []byte) error {
	aux := struct {
		*healthFields
		Timestamp Timestamp `json:"timestamp"`
	}{healthFields: (*healthFields)(h)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	h.Timestamp = time.Time(aux.Timestamp)
	return nil
}
