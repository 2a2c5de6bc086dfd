package domain

import (
	"github.com/fllarpy/query-inspect/domain/query"
)

// Snapshot is a point-in-time, read-only copy of the retained reports.
// It is the structure served by the debug endpoint.
type Snapshot struct {
	Reports    []query.ReportEvent    `json:"reports"`
	Duplicates []query.DuplicateEvent `json:"duplicates"`
}

// StoreReader defines the contract for reading retained reports.
type StoreReader interface {
	GetSnapshot() *Snapshot
}

// StoreWriter defines the contract for recording inspection results.
type StoreWriter interface {
	AddReport(path string, stats query.RequestStats)
	AddDuplicate(path, sql string, count int)
}

// Store is the combined interface for a report store.
type Store interface {
	StoreReader
	StoreWriter
}
