package kb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/h1v3-io/helpdesk/pkg/protocol"
)

type countingSource struct {
	mu       sync.Mutex
	searches int
	gets     int
	err      error
}

func (s *countingSource) SearchKB(_ context.Context, query string, limit int) ([]protocol.KBArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	if s.err != nil {
		return nil, s.err
	}
	return []protocol.KBArticle{{ID: "k1", Title: "VPN Setup " + query}}, nil
}

func (s *countingSource) GetKBArticle(_ context.Context, id string) (*protocol.KBArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	return &protocol.KBArticle{ID: id, Title: "Article " + id}, nil
}

func TestCache_SearchHit(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, time.Minute, nil)
	ctx := context.Background()

	c.SearchKB(ctx, "VPN", 3)
	got, err := c.SearchKB(ctx, "  vpn ", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if src.searches != 1 {
		t.Errorf("source searched %d times, want 1", src.searches)
	}
	if len(got) != 1 || got[0].ID != "k1" {
		t.Errorf("got %v", got)
	}

	c.SearchKB(ctx, "vpn", 5)
	if src.searches != 2 {
		t.Errorf("different limit should miss, searches = %d", src.searches)
	}
}

func TestCache_ResultsAreCopies(t *testing.T) {
	c := NewCache(&countingSource{}, time.Minute, nil)
	ctx := context.Background()

	first, _ := c.SearchKB(ctx, "vpn", 3)
	first[0].Title = "mutated"
	second, _ := c.SearchKB(ctx, "vpn", 3)
	if second[0].Title == "mutated" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestCache_ErrorsNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("backend down")}
	c := NewCache(src, time.Minute, nil)
	ctx := context.Background()

	if _, err := c.SearchKB(ctx, "vpn", 3); err == nil {
		t.Fatal("expected error")
	}
	src.err = nil
	if _, err := c.SearchKB(ctx, "vpn", 3); err != nil {
		t.Fatalf("search: %v", err)
	}
	if src.searches != 2 {
		t.Errorf("searches = %d, want 2", src.searches)
	}
}

func TestCache_GetArticle(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, time.Minute, nil)
	ctx := context.Background()

	c.GetKBArticle(ctx, "k9")
	a, err := c.GetKBArticle(ctx, "k9")
	if err != nil || a.Title != "Article k9" {
		t.Fatalf("got %v, %v", a, err)
	}
	if src.gets != 1 {
		t.Errorf("gets = %d", src.gets)
	}

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len after flush = %d", c.Len())
	}
	c.GetKBArticle(ctx, "k9")
	if src.gets != 2 {
		t.Errorf("gets after flush = %d", src.gets)
	}
}

func TestCache_Disabled(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, 0, nil)
	ctx := context.Background()

	c.SearchKB(ctx, "vpn", 3)
	c.SearchKB(ctx, "vpn", 3)
	if src.searches != 2 {
		t.Errorf("searches = %d, want 2 with caching disabled", src.searches)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}
}
