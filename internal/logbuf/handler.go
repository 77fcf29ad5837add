package logbuf

import (
	"context"
	"log/slog"
)

// Handler tees every record into a Buffer and forwards records at or above
// the inner handler's level to it. The buffer sees all levels.
type Handler struct {
	inner  slog.Handler
	buf    *Buffer
	attrs  []slog.Attr
	prefix string
}

// NewHandler wraps inner so records are also captured in buf.
func NewHandler(inner slog.Handler, buf *Buffer) *Handler {
	return &Handler{inner: inner, buf: buf}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var attrs map[string]any
	add := func(a slog.Attr, prefix string) {
		if a.Equal(slog.Attr{}) {
			return
		}
		if attrs == nil {
			attrs = make(map[string]any, r.NumAttrs()+len(h.attrs))
		}
		flatten(attrs, prefix+a.Key, a.Value)
	}
	for _, a := range h.attrs {
		add(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a, h.prefix)
		return true
	})

	h.buf.Add(Entry{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs})

	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Bound attrs are stored with the current group prefix applied.
	bound := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(bound, h.attrs)
	for _, a := range attrs {
		bound = append(bound, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &Handler{inner: h.inner.WithAttrs(attrs), buf: h.buf, attrs: bound, prefix: h.prefix}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{inner: h.inner.WithGroup(name), buf: h.buf, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// flatten writes v under key, expanding groups into dotted keys. Errors are
// stored as their message so they survive JSON encoding.
func flatten(dst map[string]any, key string, v slog.Value) {
	v = v.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, a := range v.Group() {
			flatten(dst, key+"."+a.Key, a.Value)
		}
		return
	}
	raw := v.Any()
	if err, ok := raw.(error); ok {
		raw = err.Error()
	}
	dst[key] = raw
}
