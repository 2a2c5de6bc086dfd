// Package http_middleware provides the HTTP middleware that drives query
// inspection for one request: it installs a fresh capture buffer on the
// request context, lets the handler run, aggregates the captured queries,
// and emits the report as log lines and X-QueryInspect-* response headers.
//
// The middleware is designed to be used with the standard library's
// net/http package and is shaped as func(http.Handler) http.Handler, so it
// drops into routers like chi unchanged.
package http_middleware
