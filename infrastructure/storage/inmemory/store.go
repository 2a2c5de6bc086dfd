package inmemory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fllarpy/query-inspect/domain"
	"github.com/fllarpy/query-inspect/domain/query"
)

const (
	// Default buffer size for retained reports and duplicate events.
	defaultEventBufferSize = 100
)

// --- Store Implementation ---

// Store is a thread-safe in-memory store retaining the most recent request
// reports and duplicate events for the debug endpoint. It implements the
// domain.Store interface.
var _ domain.Store = (*Store)(nil)

type Store struct {
	mu         sync.RWMutex
	reports    *ringBuffer[query.ReportEvent]
	duplicates *ringBuffer[query.DuplicateEvent]
}

// NewStore creates a Store retaining up to size events of each kind; a
// non-positive size selects the default.
func NewStore(size int) *Store {
	if size <= 0 {
		size = defaultEventBufferSize
	}
	return &Store{
		reports:    newRingBuffer[query.ReportEvent](size),
		duplicates: newRingBuffer[query.DuplicateEvent](size),
	}
}

// AddReport retains the summary of one inspected request, evicting the
// oldest report when the buffer is full.
func (s *Store) AddReport(path string, stats query.RequestStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports.add(query.ReportEvent{
		ID:                 uuid.NewString(),
		Timestamp:          time.Now(),
		Path:               path,
		QueryCount:         stats.QueryCount,
		DuplicateCount:     stats.DuplicateCount,
		TotalSQLTimeMs:     stats.TotalSQLTime.Milliseconds(),
		TotalRequestTimeMs: stats.TotalRequestTime.Milliseconds(),
	})
}

// AddDuplicate retains one duplicate group observed on a request.
func (s *Store) AddDuplicate(path, sql string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.duplicates.add(query.DuplicateEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Path:      path,
		SQL:       sql,
		Count:     count,
	})
}

// GetSnapshot returns a read-only copy of the retained events.
func (s *Store) GetSnapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &domain.Snapshot{
		Reports:    s.reports.getAll(),
		Duplicates: s.duplicates.getAll(),
	}
}

// --- Ring Buffer for Events ---

// ringBuffer is a generic, thread-unsafe circular buffer.
// The locking must be handled by the parent (Store).
type ringBuffer[T any] struct {
	buffer []T
	size   int
	start  int
	count  int
}

// newRingBuffer creates a new ring buffer of a given size.
func newRingBuffer[T any](size int) *ringBuffer[T] {
	return &ringBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// add inserts an element into the buffer, overwriting the oldest if full.
func (rb *ringBuffer[T]) add(item T) {
	index := (rb.start + rb.count) % rb.size
	rb.buffer[index] = item
	if rb.count < rb.size {
		rb.count++
	} else {
		rb.start = (rb.start + 1) % rb.size
	}
}

// getAll returns all elements in the buffer in order.
func (rb *ringBuffer[T]) getAll() []T {
	if rb.count == 0 {
		return nil
	}
	items := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		items[i] = rb.buffer[(rb.start+i)%rb.size]
	}
	return items
}
