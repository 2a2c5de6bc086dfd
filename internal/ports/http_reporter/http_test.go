package http_reporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fllarpy/query-inspect/domain"
	"github.com/fllarpy/query-inspect/domain/query"
	"github.com/fllarpy/query-inspect/infrastructure/storage/inmemory"
)

func TestNewHandler(t *testing.T) {
	store := inmemory.NewStore(10)
	store.AddReport("/users", query.RequestStats{
		QueryCount:       3,
		DuplicateCount:   1,
		TotalSQLTime:     12 * time.Millisecond,
		TotalRequestTime: 80 * time.Millisecond,
	})
	store.AddDuplicate("/users", "SELECT * FROM t WHERE id=1", 2)

	rr := httptest.NewRecorder()
	NewHandler(store).ServeHTTP(rr, httptest.NewRequest("GET", "/debug/queryinspect", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var snapshot domain.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snapshot))
	require.Len(t, snapshot.Reports, 1)
	assert.Equal(t, "/users", snapshot.Reports[0].Path)
	assert.Equal(t, 3, snapshot.Reports[0].QueryCount)
	require.Len(t, snapshot.Duplicates, 1)
	assert.Equal(t, 2, snapshot.Duplicates[0].Count)
}
