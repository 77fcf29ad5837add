package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// One connection keeps pragmas in effect and serialises writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			id            TEXT PRIMARY KEY,
			source        TEXT NOT NULL DEFAULT 'chatbot',
			employee      TEXT NOT NULL,
			subject       TEXT NOT NULL,
			description   TEXT NOT NULL,
			priority      TEXT NOT NULL DEFAULT 'medium',
			category      TEXT NOT NULL DEFAULT 'other',
			assigned_team TEXT,
			status        TEXT NOT NULL DEFAULT 'open',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS kb_articles (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			content       TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT 'other',
			keywords      TEXT NOT NULL DEFAULT '[]',
			views         INTEGER NOT NULL DEFAULT 0,
			helpful_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_employee ON tickets(employee);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

const ticketColumns = "id, source, employee, subject, description, priority, category, assigned_team, status, created_at, updated_at"

func (s *SQLiteStore) CreateTicket(ctx context.Context, t *protocol.Ticket) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tickets (`+ticketColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Source), t.Employee, t.Subject, t.Description, string(t.Priority), string(t.Category),
		t.AssignedTeam, string(t.Status), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: create ticket: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTicket(ctx context.Context, id string) (*protocol.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get ticket: %w", err)
	}
	return t, nil
}

// ticketWhere builds the WHERE clause shared by list and count.
func ticketWhere(q protocol.TicketQuery) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if q.Employee != "" {
		where += " AND LOWER(employee) LIKE LOWER(?)"
		args = append(args, "%"+q.Employee+"%")
	}
	if q.Status != "" {
		where += " AND status = ?"
		args = append(args, string(q.Status))
	}
	if q.Category != "" {
		where += " AND category = ?"
		args = append(args, string(q.Category))
	}
	return where, args
}

func (s *SQLiteStore) ListTickets(ctx context.Context, q protocol.TicketQuery) ([]protocol.Ticket, error) {
	where, args := ticketWhere(q)
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets` + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []protocol.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) CountTickets(ctx context.Context, q protocol.TicketQuery) (int, error) {
	where, args := ticketWhere(q)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count tickets: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status protocol.TicketStatus) (*protocol.Ticket, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("store: update status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	return s.GetTicket(ctx, id)
}

func (s *SQLiteStore) UpdatePriority(ctx context.Context, id string, p protocol.TicketPriority) error {
	result, err := s.db.ExecContext(ctx, `UPDATE tickets SET priority = ?, updated_at = ? WHERE id = ?`,
		string(p), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: update priority: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Unresolved(ctx context.Context, p protocol.TicketPriority, before time.Time) ([]protocol.Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE status != 'resolved' AND priority = ? AND created_at < ? ORDER BY created_at`,
		string(p), formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("store: unresolved: %w", err)
	}
	defer rows.Close()

	var tickets []protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("store: unresolved scan: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) SaveArticle(ctx context.Context, a *protocol.KBArticle) error {
	kw := a.Keywords
	if kw == nil {
		kw = []string{}
	}
	keywords, _ := json.Marshal(kw)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kb_articles (id, title, content, category, keywords, views, helpful_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, content=excluded.content, category=excluded.category,
			keywords=excluded.keywords, helpful_count=excluded.helpful_count
	`, a.ID, a.Title, a.Content, string(a.Category), string(keywords), a.Views, a.HelpfulCount)
	if err != nil {
		return fmt.Errorf("store: save article: %w", err)
	}
	return nil
}

const articleColumns = "id, title, content, category, keywords, views, helpful_count"

func (s *SQLiteStore) GetArticle(ctx context.Context, id string) (*protocol.KBArticle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM kb_articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("article %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get article: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) IncrementViews(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE kb_articles SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: increment views: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("article %q: %w", id, ErrNotFound)
	}
	return nil
}

// SearchArticles matches each query term against title, content and
// keywords. Relevance is the fraction of terms an article matches; ties are
// broken by helpful count, then views.
func (s *SQLiteStore) SearchArticles(ctx context.Context, query string, limit int) ([]protocol.KBArticle, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return []protocol.KBArticle{}, nil
	}

	var conds []string
	var args []any
	for _, term := range terms {
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR LOWER(keywords) LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern, pattern)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM kb_articles WHERE `+strings.Join(conds, " OR "), args...)
	if err != nil {
		return nil, fmt.Errorf("store: search articles: %w", err)
	}
	defer rows.Close()

	articles := []protocol.KBArticle{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("store: search scan: %w", err)
		}
		score := relevance(a, terms)
		a.RelevanceScore = &score
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search articles: %w", err)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		ai, aj := articles[i], articles[j]
		if *ai.RelevanceScore != *aj.RelevanceScore {
			return *ai.RelevanceScore > *aj.RelevanceScore
		}
		if ai.HelpfulCount != aj.HelpfulCount {
			return ai.HelpfulCount > aj.HelpfulCount
		}
		return ai.Views > aj.Views
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "how": true, "can": true, "not": true,
	"with": true, "my": true, "is": true, "do": true, "to": true, "in": true,
	"on": true, "at": true, "of": true, "it": true, "me": true, "an": true, "or": true,
}

// searchTerms lowercases query and splits it into distinct words, dropping
// stopwords and one-letter tokens.
func searchTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var terms []string
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func relevance(a *protocol.KBArticle, terms []string) float64 {
	haystack := strings.ToLower(a.Title + " " + a.Content + " " + strings.Join(a.Keywords, " "))
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(s scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var source, priority, category, status, createdAt, updatedAt string
	var team sql.NullString

	err := s.Scan(&t.ID, &source, &t.Employee, &t.Subject, &t.Description, &priority, &category,
		&team, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Source = protocol.TicketSource(source)
	t.Priority = protocol.TicketPriority(priority)
	t.Category = protocol.TicketCategory(category)
	t.Status = protocol.TicketStatus(status)
	if team.Valid {
		v := team.String
		t.AssignedTeam = &v
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	t.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &t, nil
}

func scanArticle(s scannable) (*protocol.KBArticle, error) {
	var a protocol.KBArticle
	var category, keywordsJSON string
	if err := s.Scan(&a.ID, &a.Title, &a.Content, &category, &keywordsJSON, &a.Views, &a.HelpfulCount); err != nil {
		return nil, err
	}
	a.Category = protocol.TicketCategory(category)
	json.Unmarshal([]byte(keywordsJSON), &a.Keywords)
	return &a, nil
}
