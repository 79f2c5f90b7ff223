package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swapHandler forwards to a handler that can be replaced after loggers
// have been handed out. Handlers derived through WithAttrs and WithGroup
// follow the replacement too.
type swapHandler struct {
	root   *atomic.Pointer[slog.Handler]
	derive []func(slog.Handler) slog.Handler

	// cache holds the derived chain for the current root.
	cache atomic.Pointer[derivedHandler]
}

type derivedHandler struct {
	base    *slog.Handler
	handler slog.Handler
}

func newSwapHandler(h slog.Handler) *swapHandler {
	root := &atomic.Pointer[slog.Handler]{}
	root.Store(&h)
	return &swapHandler{root: root}
}

// swap replaces the underlying handler for this handler and every handler
// derived from it.
func (s *swapHandler) swap(h slog.Handler) {
	s.root.Store(&h)
}

func (s *swapHandler) current() slog.Handler {
	base := s.root.Load()
	if d := s.cache.Load(); d != nil && d.base == base {
		return d.handler
	}
	h := *base
	for _, fn := range s.derive {
		h = fn(h)
	}
	s.cache.Store(&derivedHandler{base: base, handler: h})
	return h
}

// Enabled implements slog.Handler.
func (s *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.current().Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (s *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.current().Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (s *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (s *swapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return s.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *swapHandler) with(fn func(slog.Handler) slog.Handler) *swapHandler {
	derive := make([]func(slog.Handler) slog.Handler, len(s.derive), len(s.derive)+1)
	copy(derive, s.derive)
	return &swapHandler{root: s.root, derive: append(derive, fn)}
}
