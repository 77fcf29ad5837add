package classify

import (
	"strings"
	"testing"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text        string
		category    protocol.TicketCategory
		priority    protocol.TicketPriority
		autoResolve bool
	}{
		{"my VPN is down", protocol.CategoryNetwork, protocol.PriorityHigh, false},
		{"The printer on floor 3 is broken", protocol.CategoryHardware, protocol.PriorityHigh, false},
		{"I need a license for the design software", protocol.CategorySoftware, protocol.PriorityMedium, false},
		{"how do I reset my password", protocol.CategoryAccess, protocol.PriorityLow, true},
		{"hello", protocol.CategoryOther, protocol.PriorityLow, true},
		{"the coffee machine is empty", protocol.CategoryOther, protocol.PriorityLow, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := Classify(tt.text)
			if got.Category != tt.category {
				t.Errorf("category = %q, want %q", got.Category, tt.category)
			}
			if got.Priority != tt.priority {
				t.Errorf("priority = %q, want %q", got.Priority, tt.priority)
			}
			if got.AutoResolve != tt.autoResolve {
				t.Errorf("auto_resolve = %v, want %v", got.AutoResolve, tt.autoResolve)
			}
			if got.AutoResolve != (got.ResolutionMessage != nil) {
				t.Error("resolution message must be set exactly when auto-resolvable")
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("confidence out of range: %v", got.Confidence)
			}
		})
	}
}

func TestClassify_PasswordResolution(t *testing.T) {
	got := Classify("Forgot password again")
	if got.ResolutionMessage == nil || !strings.Contains(*got.ResolutionMessage, "password.powergrid.in") {
		t.Errorf("unexpected resolution %v", got.ResolutionMessage)
	}
}

func TestClassify_LowConfidenceWithoutKeywords(t *testing.T) {
	if c := Classify("lunch plans?"); c.Confidence >= Classify("vpn network wifi down").Confidence {
		t.Errorf("keyword-free text should score lower, got %v", c.Confidence)
	}
}

func TestHasITContext(t *testing.T) {
	if HasITContext("good evening") {
		t.Error("greeting should not count as IT context")
	}
	if !HasITContext("Printer jam") {
		t.Error("printer should count as IT context")
	}
	if !HasITContext("it's not working") {
		t.Error("phrase should count as IT context")
	}
}
