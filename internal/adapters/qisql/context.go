package qisql

import (
	"context"
	"sync"
	"time"

	"github.com/fllarpy/query-inspect/domain/query"
	"github.com/fllarpy/query-inspect/internal/inspect"
)

// contextKey is an unexported type for keys defined in this package.
type contextKey struct{}

var bufferKey = contextKey{}

// Buffer is the request-scoped capture sink. It is installed on the request
// context when capture starts and appended to by the wrapped driver for
// every executed statement. Handlers may fan work out to goroutines sharing
// the request context, so appends are mutex-guarded.
type Buffer struct {
	mu            sync.Mutex
	records       []query.Record
	captureStacks bool
}

// WithCapture returns a context carrying a fresh capture buffer, and the
// buffer itself for later draining. When captureStacks is set, every
// recorded statement also carries the call stack that issued it; leave it
// off to avoid the capture cost on every query when tracebacks are unused.
func WithCapture(parent context.Context, captureStacks bool) (context.Context, *Buffer) {
	b := &Buffer{captureStacks: captureStacks}
	return context.WithValue(parent, bufferKey, b), b
}

// FromContext retrieves the capture buffer, or nil when capture is not
// active on this context.
func FromContext(ctx context.Context) *Buffer {
	b, _ := ctx.Value(bufferKey).(*Buffer)
	return b
}

// Record appends one executed statement to the context's capture buffer, if
// any. The wrapped driver calls it for every statement; custom database
// layers that bypass database/sql can call it directly.
func Record(ctx context.Context, sql string, d time.Duration) {
	b := FromContext(ctx)
	if b == nil {
		return
	}

	var stack []query.Frame
	if b.captureStacks {
		stack = inspect.CaptureStack(1)
	}

	b.mu.Lock()
	b.records = append(b.records, query.Record{SQL: sql, Duration: d, Stack: stack})
	b.mu.Unlock()
}

// Records returns a copy of everything captured so far, in execution order.
func (b *Buffer) Records() []query.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]query.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len reports how many statements have been captured so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
