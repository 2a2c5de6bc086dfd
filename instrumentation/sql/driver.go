package sql

import (
	"database/sql"
	"database/sql/driver"

	"github.com/XSAM/otelsql"

	"github.com/fllarpy/query-inspect/internal/adapters/qisql"
)

// Register wraps drv with query recording and registers it in database/sql
// under name. Databases opened through the registered name feed every
// executed statement into the active request's capture buffer.
func Register(name string, drv driver.Driver) {
	qisql.Register(name, drv)
}

// OpenTraced opens a database instrumented with OpenTelemetry spans, for
// services on the trace-based capture path (see exporter.TraceInspector).
func OpenTraced(driverName, dataSourceName string) (*sql.DB, error) {
	db, err := otelsql.Open(driverName, dataSourceName, otelsql.WithAttributes())
	if err != nil {
		return nil, err
	}

	return db, nil
}
