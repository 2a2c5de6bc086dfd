package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/fllarpy/query-inspect/domain"
	"github.com/fllarpy/query-inspect/domain/query"
	"github.com/fllarpy/query-inspect/internal/inspect"
	"github.com/fllarpy/query-inspect/pkg/config"
)

const (
	sweepInterval     = 1 * time.Minute
	staleTraceTimeout = 2 * time.Minute
)

// traceBuffer accumulates the db spans of one trace until its server span
// arrives.
type traceBuffer struct {
	records  []query.Record
	lastSeen time.Time
}

// TraceInspector is an OpenTelemetry span exporter that runs query
// inspection over traced services: db client spans are grouped per trace
// and, when the trace's server span completes, the group is aggregated and
// reported exactly like a middleware-captured request. It is the capture
// path for services instrumented with otelsql/otelhttp rather than the
// wrapped driver; tracebacks are unavailable on this path because spans
// carry no call stacks.
type TraceInspector struct {
	cfg    *config.Config
	logger *slog.Logger
	store  domain.StoreWriter

	mu     sync.Mutex
	traces map[trace.TraceID]*traceBuffer

	done      chan struct{}
	closeOnce sync.Once
}

// NewTraceInspector creates the exporter and starts a sweeper that drops
// traces whose server span never arrives.
func NewTraceInspector(cfg *config.Config, logger *slog.Logger, store domain.StoreWriter) *TraceInspector {
	if logger == nil {
		logger = slog.Default()
	}
	t := &TraceInspector{
		cfg:    cfg,
		logger: logger,
		store:  store,
		traces: make(map[trace.TraceID]*traceBuffer),
		done:   make(chan struct{}),
	}
	go t.sweep()
	return t
}

// ExportSpans implements sdktrace.SpanExporter. Client spans end before
// their server span, so within a batch the db spans of a trace are seen
// before the server span that reports them.
func (t *TraceInspector) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		switch span.SpanKind() {
		case trace.SpanKindServer:
			t.finishTrace(span)
		case trace.SpanKindClient:
			t.collect(span)
		}
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter and stops the sweeper.
func (t *TraceInspector) Shutdown(ctx context.Context) error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// collect records a db client span into its trace's buffer. Non-db client
// spans (outgoing HTTP and the like) are ignored.
func (t *TraceInspector) collect(span sdktrace.ReadOnlySpan) {
	var isDB bool
	var statement string
	for _, attr := range span.Attributes() {
		if attr.Key == semconv.DBSystemKey {
			isDB = true
		}
		if string(attr.Key) == "db.statement" {
			statement = attr.Value.AsString()
		}
	}
	if !isDB || statement == "" {
		return
	}

	rec := query.Record{
		SQL:      statement,
		Duration: span.EndTime().Sub(span.StartTime()),
	}

	traceID := span.SpanContext().TraceID()

	t.mu.Lock()
	defer t.mu.Unlock()

	tb, ok := t.traces[traceID]
	if !ok {
		tb = &traceBuffer{}
		t.traces[traceID] = tb
	}
	tb.records = append(tb.records, rec)
	tb.lastSeen = time.Now()
}

// finishTrace pops the trace's buffer and reports it, using the server
// span's name as the request path and its duration as the request time.
func (t *TraceInspector) finishTrace(span sdktrace.ReadOnlySpan) {
	traceID := span.SpanContext().TraceID()

	t.mu.Lock()
	tb := t.traces[traceID]
	delete(t.traces, traceID)
	t.mu.Unlock()

	var records []query.Record
	if tb != nil {
		records = tb.records
	}
	t.report(span.Name(), records, span.EndTime().Sub(span.StartTime()))
}

// report runs the shared aggregate-and-emit pipeline for one trace.
// Failures are contained, matching the middleware's fail-open policy.
func (t *TraceInspector) report(path string, records []query.Record, elapsed time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Warn("query inspection failed, skipping trace report", "panic", fmt.Sprint(p), "path", path)
		}
	}()

	stats := inspect.Aggregate(records, elapsed, t.cfg)
	lines, _ := inspect.Emit(stats, t.cfg)
	for _, line := range lines {
		t.logger.Log(context.Background(), line.Level, line.Message)
	}

	if t.store != nil {
		t.store.AddReport(path, stats)
		for _, g := range stats.DuplicateGroups {
			t.store.AddDuplicate(path, g.SampleSQL, g.Count)
		}
	}
}

func (t *TraceInspector) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.dropStaleTraces()
		case <-t.done:
			return
		}
	}
}

// dropStaleTraces evicts traces whose server span never showed up, e.g.
// background jobs issuing db spans outside any request.
func (t *TraceInspector) dropStaleTraces() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	dropped := 0
	for id, tb := range t.traces {
		if now.Sub(tb.lastSeen) > staleTraceTimeout {
			delete(t.traces, id)
			dropped++
		}
	}
	if dropped > 0 {
		t.logger.Debug("dropped stale traces without a server span", "count", dropped)
	}
}
