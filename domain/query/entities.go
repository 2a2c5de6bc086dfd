package query

import "time"

// --- Capture-time data ---

// Frame describes one call-stack frame captured when a statement executed.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// Record holds one executed SQL statement: its raw text, how long it took,
// and optionally the call stack that issued it. Records are immutable once
// appended to the request's capture buffer.
type Record struct {
	SQL      string
	Duration time.Duration
	Stack    []Frame
}

// --- Aggregated statistics ---

// DuplicateGroup is a set of two or more records that share a normalized
// signature. SampleSQL is the first raw statement seen for the signature;
// SampleStacks holds up to the configured limit of captured stacks, in
// first-seen order.
type DuplicateGroup struct {
	Signature     string
	Count         int
	SampleSQL     string
	TotalDuration time.Duration
	SampleStacks  [][]Frame
}

// Outlier marks a record whose duration crossed a configured threshold.
// Both flags may be set when the record crossed both.
type Outlier struct {
	Record      Record
	Absolute    bool
	Statistical bool
}

// RequestStats is the full result of aggregating one request's capture
// buffer. It is computed once per request and read-only afterwards.
type RequestStats struct {
	QueryCount       int
	DuplicateCount   int
	TotalSQLTime     time.Duration
	TotalRequestTime time.Duration
	MeanMs           float64
	StdDevMs         float64
	DuplicateGroups  []DuplicateGroup
	Outliers         []Outlier
	Records          []Record
}

// --- Store events (for the debug snapshot) ---

// ReportEvent is the retained summary of one inspected request.
type ReportEvent struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Path               string    `json:"path"`
	QueryCount         int       `json:"query_count"`
	DuplicateCount     int       `json:"duplicate_count"`
	TotalSQLTimeMs     int64     `json:"total_sql_time_ms"`
	TotalRequestTimeMs int64     `json:"total_request_time_ms"`
}

// DuplicateEvent records one duplicate group observed on a request.
type DuplicateEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	SQL       string    `json:"sql"`
	Count     int       `json:"count"`
}
