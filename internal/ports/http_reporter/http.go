package http_reporter

import (
	"encoding/json"
	"net/http"

	"github.com/fllarpy/query-inspect/domain"
)

// NewHandler creates an HTTP handler that serves the store's snapshot of
// recent request reports and duplicate events as JSON.
func NewHandler(store domain.StoreReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot := store.GetSnapshot()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			// If encoding fails, it's a server-side problem.
			http.Error(w, "Failed to encode reports to JSON", http.StatusInternalServerError)
		}
	})
}
