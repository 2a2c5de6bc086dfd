package qisql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake driver ---

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{}, nil }

type fakeConn struct{}

func (*fakeConn) Prepare(q string) (driver.Stmt, error) { return &fakeStmt{}, nil }
func (*fakeConn) Close() error                          { return nil }
func (*fakeConn) Begin() (driver.Tx, error)             { return nil, errors.New("not supported") }

func (*fakeConn) QueryContext(ctx context.Context, q string, args []driver.NamedValue) (driver.Rows, error) {
	return &fakeRows{}, nil
}

func (*fakeConn) ExecContext(ctx context.Context, q string, args []driver.NamedValue) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

type fakeStmt struct{}

func (*fakeStmt) Close() error  { return nil }
func (*fakeStmt) NumInput() int { return -1 }
func (*fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}
func (*fakeStmt) Query(args []driver.Value) (driver.Rows, error) { return &fakeRows{}, nil }

type fakeRows struct{}

func (*fakeRows) Columns() []string              { return nil }
func (*fakeRows) Close() error                   { return nil }
func (*fakeRows) Next(dest []driver.Value) error { return io.EOF }

// ---

func TestRecordAndBuffer(t *testing.T) {
	t.Run("records land in the context buffer", func(t *testing.T) {
		ctx, buf := WithCapture(context.Background(), false)

		Record(ctx, "SELECT a", 10*time.Millisecond)
		Record(ctx, "SELECT b", 20*time.Millisecond)

		records := buf.Records()
		require.Len(t, records, 2)
		assert.Equal(t, "SELECT a", records[0].SQL)
		assert.Equal(t, 10*time.Millisecond, records[0].Duration)
		assert.Nil(t, records[0].Stack)
		assert.Equal(t, 2, buf.Len())
	})

	t.Run("records carry a stack when capture is enabled", func(t *testing.T) {
		ctx, buf := WithCapture(context.Background(), true)

		Record(ctx, "SELECT a", time.Millisecond)

		records := buf.Records()
		require.Len(t, records, 1)
		require.NotEmpty(t, records[0].Stack)
		// Innermost frame is this test, not the capture machinery.
		last := records[0].Stack[len(records[0].Stack)-1]
		assert.Contains(t, last.File, "qisql_test.go")
	})

	t.Run("no-op without a capture buffer", func(t *testing.T) {
		assert.NotPanics(t, func() {
			Record(context.Background(), "SELECT a", time.Millisecond)
		})
		assert.Nil(t, FromContext(context.Background()))
	})

	t.Run("records snapshot is a copy", func(t *testing.T) {
		ctx, buf := WithCapture(context.Background(), false)
		Record(ctx, "SELECT a", time.Millisecond)

		snap := buf.Records()
		Record(ctx, "SELECT b", time.Millisecond)

		assert.Len(t, snap, 1)
		assert.Len(t, buf.Records(), 2)
	})
}

func TestWrappedDriverRecordsStatements(t *testing.T) {
	Register("fake-qi", fakeDriver{})

	db, err := sql.Open("fake-qi", "dsn")
	require.NoError(t, err)
	defer db.Close()

	ctx, buf := WithCapture(context.Background(), false)

	_, err = db.ExecContext(ctx, "INSERT INTO t (id) VALUES (1)")
	require.NoError(t, err)

	rows, err := db.QueryContext(ctx, "SELECT * FROM t WHERE id = 1")
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	records := buf.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "INSERT INTO t (id) VALUES (1)", records[0].SQL)
	assert.Equal(t, "SELECT * FROM t WHERE id = 1", records[1].SQL)
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Duration, time.Duration(0))
	}
}

func TestWrappedDriverWithoutCaptureContext(t *testing.T) {
	Register("fake-qi-nocapture", fakeDriver{})

	db, err := sql.Open("fake-qi-nocapture", "dsn")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(context.Background(), "INSERT INTO t (id) VALUES (1)")
	assert.NoError(t, err, "statements outside a captured request run unaffected")
}

func TestRegisterPanics(t *testing.T) {
	assert.Panics(t, func() { Register("fake-qi-nil", nil) })

	Register("fake-qi-dup", fakeDriver{})
	assert.Panics(t, func() { Register("fake-qi-dup", fakeDriver{}) })
}
