package protocol

import "fmt"

// KBArticle is a knowledge-base document the assistant may suggest.
type KBArticle struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Category       TicketCategory `json:"category"`
	Keywords       []string       `json:"keywords,omitempty"`
	Views          int            `json:"views"`
	HelpfulCount   int            `json:"helpful_count"`
	RelevanceScore *float64       `json:"relevance_score,omitempty"`
}

// MatchLabel renders the relevance score as "N% match", or "" when the
// backend did not score the article.
func (a KBArticle) MatchLabel() string {
	if a.RelevanceScore == nil {
		return ""
	}
	return fmt.Sprintf("%.0f%% match", *a.RelevanceScore*100)
}
