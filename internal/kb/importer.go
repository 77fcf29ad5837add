package kb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/google/uuid"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

const (
	maxImportSize  = 2 << 20
	maxContentSize = 20 * 1024
	importTimeout  = 30 * time.Second
	maxKeywords    = 8
)

// Saver persists imported articles. *store.SQLiteStore satisfies it.
type Saver interface {
	SaveArticle(ctx context.Context, a *protocol.KBArticle) error
}

// Importer turns HTML pages into knowledge-base articles.
type Importer struct {
	saver  Saver
	client *http.Client
	logger *slog.Logger
}

// NewImporter creates an importer that writes to saver.
func NewImporter(saver Saver, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		saver:  saver,
		client: &http.Client{Timeout: importTimeout},
		logger: logger,
	}
}

// Import fetches source (an http(s) URL or a local HTML file), extracts the
// readable text and saves it under category. Importing the same source
// again updates the existing article.
func (im *Importer) Import(ctx context.Context, source string, category protocol.TicketCategory) (*protocol.KBArticle, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("kb: import: unknown category %q", category)
	}

	body, base, err := im.open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("kb: import %s: %w", source, err)
	}
	defer body.Close()

	article, err := readability.FromReader(io.LimitReader(body, maxImportSize), base)
	if err != nil {
		return nil, fmt.Errorf("kb: import %s: parse: %w", source, err)
	}
	var text bytes.Buffer
	if err := article.RenderText(&text); err != nil {
		return nil, fmt.Errorf("kb: import %s: render: %w", source, err)
	}

	content := strings.TrimSpace(text.String())
	if content == "" {
		return nil, fmt.Errorf("kb: import %s: no readable content", source)
	}
	if len(content) > maxContentSize {
		content = content[:maxContentSize]
	}
	title := strings.TrimSpace(article.Title())
	if title == "" {
		title = filepath.Base(base.Path)
	}

	a := &protocol.KBArticle{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(base.String())).String(),
		Title:    title,
		Content:  content,
		Category: category,
		Keywords: Keywords(title+" "+content, maxKeywords),
	}
	if err := im.saver.SaveArticle(ctx, a); err != nil {
		return nil, fmt.Errorf("kb: import %s: save: %w", source, err)
	}
	im.logger.Info("kb article imported", "id", a.ID, "title", a.Title, "source", source)
	return a, nil
}

func (im *Importer) open(ctx context.Context, source string) (io.ReadCloser, *url.URL, error) {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("User-Agent", "helpdesk-kb-import/1.0")
		resp, err := im.client.Do(req)
		if err != nil {
			return nil, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return resp.Body, u, nil
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, err
	}
	return f, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "you": true, "your": true, "with": true,
	"this": true, "that": true, "are": true, "from": true, "have": true, "will": true,
	"can": true, "not": true, "our": true, "all": true, "any": true, "into": true,
	"then": true, "when": true, "what": true, "how": true, "please": true,
}

// Keywords returns up to n of the most frequent non-trivial words in text,
// most frequent first.
func Keywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	}) {
		w = strings.Trim(w, "-")
		if len(w) < 3 || stopwords[w] {
			continue
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
