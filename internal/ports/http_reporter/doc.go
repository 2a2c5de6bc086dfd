// Package http_reporter exposes the retained per-request reports over HTTP
// as a JSON snapshot, for ad-hoc inspection during development.
package http_reporter
