package http_middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fllarpy/query-inspect/domain"
	"github.com/fllarpy/query-inspect/domain/query"
	"github.com/fllarpy/query-inspect/internal/adapters/qisql"
	"github.com/fllarpy/query-inspect/internal/inspect"
	"github.com/fllarpy/query-inspect/pkg/config"
	"github.com/fllarpy/query-inspect/profiling"
)

// responseWriter wraps http.ResponseWriter to inject the stats headers just
// before the response is committed: Go forbids header mutation after the
// first write, so the hook fires on the first WriteHeader/Write/Flush. For
// a streaming handler the header values cover the queries executed up to
// that point; the log report always covers the whole request.
type responseWriter struct {
	http.ResponseWriter
	onCommit  func(http.Header)
	committed bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.commit()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	rw.commit()
	return rw.ResponseWriter.Write(p)
}

func (rw *responseWriter) Flush() {
	rw.commit()
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *responseWriter) commit() {
	if rw.committed {
		return
	}
	rw.committed = true
	if rw.onCommit != nil {
		rw.onCommit(rw.Header())
	}
}

// Middleware returns HTTP middleware that inspects the SQL queries executed
// while handling each request. store and profiler may be nil. With the
// inspector disabled it returns the identity middleware and the request
// path is untouched.
//
// The deferred teardown runs on every exit path, so a panicking handler
// still gets its queries aggregated and reported before the panic resumes.
// Failures inside aggregation or reporting are contained: they are logged
// as warnings and never reach the caller or alter the response body.
func Middleware(cfg *config.Config, logger *slog.Logger, store domain.StoreWriter, profiler *profiling.Profiler) func(http.Handler) http.Handler {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, buf := qisql.WithCapture(r.Context(), cfg.LogTracebacks)
			r = r.WithContext(ctx)

			rw := &responseWriter{ResponseWriter: w}
			if cfg.HeaderStats {
				rw.onCommit = func(h http.Header) {
					setHeaders(h, buf.Records(), time.Since(start), cfg, logger)
				}
			}

			defer func() {
				// A handler that never wrote still allows header mutation
				// here, before net/http commits the implicit 200.
				rw.commit()
				report(r.URL.Path, buf.Records(), time.Since(start), cfg, logger, store, profiler)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// setHeaders computes the current stats and merges the X-QueryInspect-*
// headers into h. A failure skips the headers; the log-only report still
// runs later.
func setHeaders(h http.Header, records []query.Record, elapsed time.Duration, cfg *config.Config, logger *slog.Logger) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("query inspection failed, skipping stats headers", "panic", fmt.Sprint(p))
		}
	}()

	stats := inspect.Aggregate(records, elapsed, cfg)
	_, headers := inspect.Emit(stats, cfg)
	for k, v := range headers {
		h.Set(k, v)
	}
}

// report aggregates the full capture buffer, writes the log lines, records
// the result in the store, and triggers profiling when the request spent
// too long in SQL.
func report(path string, records []query.Record, elapsed time.Duration, cfg *config.Config, logger *slog.Logger, store domain.StoreWriter, profiler *profiling.Profiler) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("query inspection failed, skipping report", "panic", fmt.Sprint(p), "path", path)
		}
	}()

	stats := inspect.Aggregate(records, elapsed, cfg)
	lines, _ := inspect.Emit(stats, cfg)
	for _, line := range lines {
		logger.Log(context.Background(), line.Level, line.Message)
	}

	if store != nil {
		store.AddReport(path, stats)
		for _, g := range stats.DuplicateGroups {
			store.AddDuplicate(path, g.SampleSQL, g.Count)
		}
	}
	if profiler != nil {
		profiler.ProfileIfSlowSQL(path, stats.TotalSQLTime)
	}
}
