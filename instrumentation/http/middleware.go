package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewMiddleware wraps handler with OpenTelemetry server spans, for services
// on the trace-based capture path.
func NewMiddleware(handler http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(handler, operation)
}
