package queryinspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fllarpy/query-inspect/domain"
	"github.com/fllarpy/query-inspect/internal/adapters/qisql"
	"github.com/fllarpy/query-inspect/pkg/config"
)

func TestInspector_EndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Enabled = true
	inspector := New(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qisql.Record(r.Context(), "SELECT name FROM users WHERE id = 1", 3*time.Millisecond)
		qisql.Record(r.Context(), "SELECT name FROM users WHERE id = 2", 3*time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	wrapped := inspector.Middleware()(handler)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest("GET", "/users", nil))

	assert.Equal(t, "2", rr.Header().Get("X-QueryInspect-Num-SQL-Queries"))
	assert.Equal(t, "1", rr.Header().Get("X-QueryInspect-Duplicate-SQL-Queries"))

	// The report shows up on the metrics handler.
	mr := httptest.NewRecorder()
	inspector.MetricsHandler().ServeHTTP(mr, httptest.NewRequest("GET", cfg.DebugEndpoint, nil))
	require.Equal(t, http.StatusOK, mr.Code)

	var snapshot domain.Snapshot
	require.NoError(t, json.NewDecoder(mr.Body).Decode(&snapshot))
	require.Len(t, snapshot.Reports, 1)
	assert.Equal(t, "/users", snapshot.Reports[0].Path)
	assert.Equal(t, 2, snapshot.Reports[0].QueryCount)
}

func TestNew_NilConfigIsDisabled(t *testing.T) {
	inspector := New(nil, nil)

	var sawCapture bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawCapture = qisql.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	})
	wrapped := inspector.Middleware()(handler)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	assert.False(t, sawCapture)
	assert.Empty(t, rr.Header().Get("X-QueryInspect-Num-SQL-Queries"))
}
