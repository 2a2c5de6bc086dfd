package qisql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"time"
)

// ---------------- Driver registration ----------------

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]driver.Driver)
)

// Register wraps the provided driver with query recording and registers it
// in database/sql under the given name. Typical usage:
//
//	import "github.com/mattn/go-sqlite3"
//	qisql.Register("sqlite3-inspect", &sqlite3.SQLiteDriver{})
//	db, _ := sql.Open("sqlite3-inspect", dsn)
//
// Statements executed through the returned DB with a capture-enabled context
// land in that request's buffer. Panics if the driver is nil or the name is
// already taken.
func Register(name string, d driver.Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("qisql: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("qisql: Register called twice for driver " + name)
	}

	drivers[name] = d
	sql.Register(name, Wrap(d))
}

// Wrap returns a driver that records every executed statement into the
// active request's capture buffer.
func Wrap(d driver.Driver) driver.Driver {
	return &qiDriver{real: d}
}

// ---------------- Driver wrappers ----------------

type qiDriver struct{ real driver.Driver }

func (d *qiDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.real.Open(name)
	if err != nil {
		return nil, err
	}
	return &qiConn{real: conn}, nil
}

type qiConn struct{ real driver.Conn }

func (c *qiConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.real.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &qiStmt{real: stmt, query: query}, nil
}
func (c *qiConn) Close() error              { return c.real.Close() }
func (c *qiConn) Begin() (driver.Tx, error) { return c.real.Begin() }

// Context-aware exec/query
func (c *qiConn) QueryContext(ctx context.Context, q string, a []driver.NamedValue) (driver.Rows, error) {
	if qx, ok := c.real.(driver.QueryerContext); ok {
		start := time.Now()
		rows, err := qx.QueryContext(ctx, q, a)
		Record(ctx, q, time.Since(start))
		return rows, err
	}
	return nil, driver.ErrSkip
}

func (c *qiConn) ExecContext(ctx context.Context, q string, a []driver.NamedValue) (driver.Result, error) {
	if ex, ok := c.real.(driver.ExecerContext); ok {
		start := time.Now()
		res, err := ex.ExecContext(ctx, q, a)
		Record(ctx, q, time.Since(start))
		return res, err
	}
	return nil, driver.ErrSkip
}

type qiStmt struct {
	real  driver.Stmt
	query string
}

func (s *qiStmt) Close() error                                    { return s.real.Close() }
func (s *qiStmt) NumInput() int                                   { return s.real.NumInput() }
func (s *qiStmt) Exec(args []driver.Value) (driver.Result, error) { return s.real.Exec(args) }
func (s *qiStmt) Query(args []driver.Value) (driver.Rows, error)  { return s.real.Query(args) }

func (s *qiStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if ex, ok := s.real.(driver.StmtExecContext); ok {
		start := time.Now()
		res, err := ex.ExecContext(ctx, args)
		Record(ctx, s.query, time.Since(start))
		return res, err
	}
	values := namedValueToValue(args)
	start := time.Now()
	res, err := s.real.Exec(values)
	Record(ctx, s.query, time.Since(start))
	return res, err
}

func (s *qiStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if qx, ok := s.real.(driver.StmtQueryContext); ok {
		start := time.Now()
		rows, err := qx.QueryContext(ctx, args)
		Record(ctx, s.query, time.Since(start))
		return rows, err
	}
	values := namedValueToValue(args)
	start := time.Now()
	rows, err := s.real.Query(values)
	Record(ctx, s.query, time.Since(start))
	return rows, err
}

func namedValueToValue(named []driver.NamedValue) []driver.Value {
	vs := make([]driver.Value, len(named))
	for i, nv := range named {
		vs[i] = nv.Value
	}
	return vs
}
