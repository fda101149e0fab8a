package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncOptions configures an AsyncHandler.
type AsyncOptions struct {
	// BufferSize is the queue length; records beyond it are dropped.
	BufferSize int
	// FlushTimeout bounds Shutdown when ctx has no deadline.
	FlushTimeout time.Duration
}

type queued struct {
	ctx    context.Context
	record slog.Record
	dst    slog.Handler
}

// shipQueue is one background sender shared by an AsyncHandler and every
// handler derived from it through WithAttrs or WithGroup.
type shipQueue struct {
	records chan queued
	stopped atomic.Bool
	dropped atomic.Uint64
	flush   time.Duration
	drained sync.WaitGroup
}

func startShipQueue(opts AsyncOptions) *shipQueue {
	size := opts.BufferSize
	if size <= 0 {
		size = 1024
	}
	flush := opts.FlushTimeout
	if flush <= 0 {
		flush = 5 * time.Second
	}
	q := &shipQueue{records: make(chan queued, size), flush: flush}
	q.drained.Go(func() {
		for item := range q.records {
			_ = item.dst.Handle(item.ctx, item.record)
		}
	})
	return q
}

func (q *shipQueue) push(item queued) {
	if q.stopped.Load() {
		return
	}
	select {
	case q.records <- item:
	default:
		q.dropped.Add(1)
	}
}

func (q *shipQueue) stop(ctx context.Context) error {
	if q.stopped.Swap(true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.flush)
		defer cancel()
	}
	close(q.records)

	done := make(chan struct{})
	go func() {
		q.drained.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler hands records to a background goroutine so a slow remote
// sink never blocks the caller. A full queue drops records.
type AsyncHandler struct {
	q   *shipQueue
	dst slog.Handler
}

// NewAsyncHandler starts the background sender for dst.
func NewAsyncHandler(dst slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{q: startShipQueue(opts), dst: dst}
}

// Enabled defers to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.dst.Enabled(ctx, level)
}

// Handle queues a clone of r.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.dst.Enabled(ctx, r.Level) {
		h.q.push(queued{ctx: context.WithoutCancel(ctx), record: r.Clone(), dst: h.dst})
	}
	return nil
}

// WithAttrs shares the queue with h.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{q: h.q, dst: h.dst.WithAttrs(attrs)}
}

// WithGroup shares the queue with h.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{q: h.q, dst: h.dst.WithGroup(name)}
}

// Dropped returns how many records were discarded because the queue was full.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.q == nil {
		return 0
	}
	return h.q.dropped.Load()
}

// Shutdown stops accepting records and waits for the queue to drain.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.q == nil {
		return nil
	}
	return h.q.stop(ctx)
}
