// Package logbuf keeps the most recent log records in memory so they can be
// served from the development backend and shown in the chat REPL.
package logbuf

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   slog.Level     `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// String renders e on one line as "15:04:05 LEVEL message key=value ...",
// attributes sorted by key.
func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}

// Filter selects entries from a Buffer. Zero values match everything.
type Filter struct {
	Since    time.Time
	MinLevel slog.Level
	Contains string // case-insensitive match on the message
	Limit    int    // keep only the newest Limit matches
}

// Buffer is a fixed-size ring of entries, safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	ring  []Entry
	next  int
	full  bool
	total uint64
}

// New returns a buffer holding up to size entries.
func New(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{ring: make([]Entry, size)}
}

// Add stores e, overwriting the oldest entry when the ring is full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	b.ring[b.next] = e
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
	b.total++
	b.mu.Unlock()
}

// Len returns the number of entries currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.ring)
	}
	return b.next
}

// Dropped returns how many entries have been overwritten since creation.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total - uint64(b.lenLocked())
}

func (b *Buffer) lenLocked() int {
	if b.full {
		return len(b.ring)
	}
	return b.next
}

// Query returns matching entries, oldest first.
func (b *Buffer) Query(f Filter) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.lenLocked()
	start := 0
	if b.full {
		start = b.next
	}
	needle := strings.ToLower(f.Contains)

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e := b.ring[(start+i)%len(b.ring)]
		if !f.Since.IsZero() && e.Time.Before(f.Since) {
			continue
		}
		if e.Level < f.MinLevel {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Message), needle) {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// ParseLevel maps a config or query string to a level. Unknown strings
// yield info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
