package logger

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler writes each record to every sink that accepts its level:
// stdout, the rotated file and the remote shipper.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler ignores nil handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	mh := &MultiHandler{}
	for _, h := range handlers {
		if h != nil {
			mh.handlers = append(mh.handlers, h)
		}
	}
	return mh
}

// Enabled is true when any sink accepts level.
func (mh *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range mh.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle gives every sink its own copy of r. A failing sink does not stop
// the others; the failures are joined.
func (mh *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range mh.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (mh *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return mh.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (mh *MultiHandler) WithGroup(name string) slog.Handler {
	return mh.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (mh *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	next := &MultiHandler{handlers: make([]slog.Handler, len(mh.handlers))}
	for i, h := range mh.handlers {
		next.handlers[i] = fn(h)
	}
	return next
}
