// Package classify assigns a category and priority to support requests using
// keyword rules, and recognises requests that can be answered without a ticket.
package classify

import (
	"math"
	"strings"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

var categoryKeywords = []struct {
	category protocol.TicketCategory
	keywords []string
}{
	{protocol.CategoryNetwork, []string{"vpn", "network", "connection", "internet", "wifi", "wi-fi", "lan", "ethernet", "dns"}},
	{protocol.CategoryAccess, []string{"password", "login", "log in", "access", "permission", "authentication", "account", "locked", "mfa"}},
	{protocol.CategoryHardware, []string{"laptop", "desktop", "printer", "monitor", "keyboard", "mouse", "hardware", "screen", "battery"}},
	{protocol.CategorySoftware, []string{"software", "application", "install", "license", "licence", "program", "app", "outlook", "excel", "update"}},
}

var (
	highPriority   = []string{"urgent", "critical", "emergency", "down", "not working", "broken", "crashed", "immediately", "asap", "production"}
	mediumPriority = []string{"soon", "important", "need", "required", "issue", "problem", "help", "support"}
)

// autoResolve lists canned answers, checked in order.
var autoResolve = []struct {
	name     string
	keywords []string
	message  string
}{
	{"greeting", []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
		"Hello! I'm here to help with your IT support needs. Please describe your issue and I'll assist you or create a support ticket."},
	{"thanks", []string{"thank you", "thanks", "thx", "appreciate"},
		"You're welcome! Is there anything else I can help you with?"},
	{"test", []string{"test", "testing"},
		"System is working properly! How can I assist you with your IT support needs?"},
	{"password_reset", []string{"reset password", "reset my password", "forgot password", "forgot my password", "password reset", "change password", "change my password"},
		"I can help you reset your password. Please visit our self-service portal at https://password.powergrid.in or contact your system administrator."},
	{"vpn_setup", []string{"vpn setup", "set up vpn", "vpn install", "install vpn", "vpn download"},
		"For VPN setup, please download the client from https://vpn.powergrid.in/downloads and follow the installation guide. If you need further assistance, I can create a support ticket."},
	{"email_mobile", []string{"email on mobile", "mobile email", "phone email setup", "email on my phone"},
		"For mobile email configuration, please check our setup guide in the knowledge base. I can provide step-by-step instructions or create a support ticket if needed."},
}

// itKeywords mark a short message as a real support request.
var itKeywords = []string{"password", "vpn", "email", "network", "computer", "laptop", "software",
	"hardware", "install", "error", "problem", "issue", "help", "support",
	"not working", "broken", "access", "login", "wifi", "internet", "printer"}

// Classify returns the category, priority, confidence and auto-resolution of
// text.
func Classify(text string) protocol.Classification {
	lower := strings.ToLower(text)

	category, catConf := classifyCategory(lower)
	priority, priConf := classifyPriority(lower)

	c := protocol.Classification{
		Category:   category,
		Priority:   priority,
		Confidence: math.Round((catConf+priConf)/2*100) / 100,
	}
	if msg, ok := resolution(lower); ok {
		c.AutoResolve = true
		c.ResolutionMessage = &msg
	}
	return c
}

// HasITContext reports whether text mentions any support topic.
func HasITContext(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range itKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func classifyCategory(lower string) (protocol.TicketCategory, float64) {
	best, bestHits := protocol.CategoryOther, 0
	for _, rule := range categoryKeywords {
		hits := countMatches(lower, rule.keywords)
		if hits > bestHits {
			best, bestHits = rule.category, hits
		}
	}
	if bestHits == 0 {
		return protocol.CategoryOther, 0.3
	}
	return best, math.Min(0.5+0.15*float64(bestHits), 0.95)
}

func classifyPriority(lower string) (protocol.TicketPriority, float64) {
	if n := countMatches(lower, highPriority); n > 0 {
		return protocol.PriorityHigh, math.Min(0.7+0.1*float64(n), 0.95)
	}
	if n := countMatches(lower, mediumPriority); n > 0 {
		return protocol.PriorityMedium, math.Min(0.6+0.05*float64(n), 0.85)
	}
	return protocol.PriorityLow, 0.6
}

func resolution(lower string) (string, bool) {
	words := wordSet(lower)
	for _, rule := range autoResolve {
		for _, kw := range rule.keywords {
			if matchKeyword(lower, words, kw) {
				return rule.message, true
			}
		}
	}
	return "", false
}

func countMatches(lower string, keywords []string) int {
	words := wordSet(lower)
	n := 0
	for _, kw := range keywords {
		if matchKeyword(lower, words, kw) {
			n++
		}
	}
	return n
}

// matchKeyword matches single words against whole words of the text so that
// "hi" does not match "machine"; phrases match as substrings.
func matchKeyword(lower string, words map[string]bool, kw string) bool {
	if strings.ContainsAny(kw, " -") {
		return strings.Contains(lower, kw)
	}
	return words[kw]
}

func wordSet(lower string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		words[w] = true
	}
	return words
}
