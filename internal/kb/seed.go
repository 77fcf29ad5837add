package kb

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// seedFile is the on-disk layout of a knowledge-base seed.
type seedFile struct {
	Articles []seedArticle `yaml:"articles"`
}

type seedArticle struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Content      string   `yaml:"content"`
	Category     string   `yaml:"category"`
	Keywords     []string `yaml:"keywords"`
	HelpfulCount int      `yaml:"helpful_count"`
}

// LoadSeed reads a YAML list of articles. Articles without an id get one
// derived from their title so reseeding is idempotent.
func LoadSeed(path string) ([]protocol.KBArticle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kb: read seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("kb: parse seed %s: %w", path, err)
	}

	out := make([]protocol.KBArticle, 0, len(f.Articles))
	for i, s := range f.Articles {
		if s.Title == "" || s.Content == "" {
			return nil, fmt.Errorf("kb: seed %s: article %d: title and content are required", path, i)
		}
		cat := protocol.TicketCategory(s.Category)
		if s.Category == "" {
			cat = protocol.CategoryOther
		} else if !cat.Valid() {
			return nil, fmt.Errorf("kb: seed %s: article %d: unknown category %q", path, i, s.Category)
		}
		id := s.ID
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.Title)).String()
		}
		keywords := s.Keywords
		if len(keywords) == 0 {
			keywords = Keywords(s.Title, maxKeywords)
		}
		out = append(out, protocol.KBArticle{
			ID:           id,
			Title:        s.Title,
			Content:      s.Content,
			Category:     cat,
			Keywords:     keywords,
			HelpfulCount: s.HelpfulCount,
		})
	}
	return out, nil
}

// Seed saves every article through saver.
func Seed(ctx context.Context, saver Saver, articles []protocol.KBArticle) error {
	for i := range articles {
		if err := saver.SaveArticle(ctx, &articles[i]); err != nil {
			return fmt.Errorf("kb: seed %s: %w", articles[i].ID, err)
		}
	}
	return nil
}
