package queryinspect

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/fllarpy/query-inspect/exporter"
	"github.com/fllarpy/query-inspect/infrastructure/storage/inmemory"
	"github.com/fllarpy/query-inspect/internal/ports/http_middleware"
	"github.com/fllarpy/query-inspect/internal/ports/http_reporter"
	"github.com/fllarpy/query-inspect/pkg/config"
	"github.com/fllarpy/query-inspect/profiling"
)

// Inspector ties the pieces together for one process: the immutable
// configuration, the report store, the optional SQL-time profiler, and the
// middleware and handlers built from them.
type Inspector struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *inmemory.Store
	profiler *profiling.Profiler
}

// New builds an Inspector from an already-validated configuration. A nil
// cfg selects the built-in defaults (inspector disabled); a nil logger
// selects slog.Default().
func New(cfg *config.Config, logger *slog.Logger) *Inspector {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ins := &Inspector{
		cfg:    cfg,
		logger: logger,
		store:  inmemory.NewStore(cfg.ReportBufferSize),
	}

	if cfg.Enabled && cfg.ProfilingEnabled {
		ins.profiler = profiling.NewProfiler(profiling.Config{
			Enabled:          true,
			SQLTimeThreshold: time.Duration(cfg.ProfilingSQLTimeThresholdMs * float64(time.Millisecond)),
			Duration:         time.Duration(cfg.ProfilingDurationS) * time.Second,
			Cooldown:         time.Duration(cfg.ProfilingCooldownS) * time.Second,
		}, logger)
	}
	return ins
}

// Middleware returns the per-request inspection middleware, shaped as
// func(http.Handler) http.Handler for use with routers like chi.
func (i *Inspector) Middleware() func(http.Handler) http.Handler {
	return http_middleware.Middleware(i.cfg, i.logger, i.store, i.profiler)
}

// MetricsHandler serves the retained reports as JSON; mount it on the
// configured debug endpoint.
func (i *Inspector) MetricsHandler() http.Handler {
	return http_reporter.NewHandler(i.store)
}

// Config returns the inspector's immutable configuration.
func (i *Inspector) Config() *config.Config { return i.cfg }

// TracerProvider builds an OpenTelemetry tracer provider whose exporter
// runs query inspection over db spans, for services captured via
// otelsql/otelhttp instead of the wrapped driver. The provider is installed
// as the global one.
func (i *Inspector) TracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exp := exporter.NewTraceInspector(i.cfg, i.logger, i.store)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// ---------------- Package-level convenience ----------------

var (
	defaultInspector *Inspector
	initOnce         sync.Once
)

// defaultIns lazily builds the process-wide inspector from
// query_inspect.yaml in the working directory and QUERY_INSPECT_* env vars.
// An invalid configuration is fatal: these helpers run during server setup,
// and starting half-instrumented would hide the misconfiguration.
func defaultIns() *Inspector {
	initOnce.Do(func() {
		cfg, err := config.Load(".")
		if err != nil {
			panic(err)
		}
		defaultInspector = New(cfg, slog.Default())
	})
	return defaultInspector
}

// Middleware returns middleware backed by the lazily-initialized default
// inspector.
func Middleware() func(http.Handler) http.Handler {
	return defaultIns().Middleware()
}

// MetricsHandler returns the default inspector's JSON report handler.
func MetricsHandler() http.Handler {
	return defaultIns().MetricsHandler()
}
