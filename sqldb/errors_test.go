package sqldb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestSQLDB_IsTransient(t *testing.T) {
	t.Parallel()

	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	syntax := sqlite3.Error{Code: sqlite3.ErrError}

	require.True(t, IsTransient(busy))
	require.True(t, IsTransient(&QueryError{Query: "SELECT 1", Err: locked}))
	require.True(t, IsTransient(fmt.Errorf("wrapped: %w", driver.ErrBadConn)))
	require.True(t, IsTransient(errors.New("IO Error: Could not set lock on file")))

	require.False(t, IsTransient(nil))
	require.False(t, IsTransient(syntax))
	require.False(t, IsTransient(&QueryError{Query: "DELETE", Err: ErrNotReadOnly}))
	require.False(t, IsTransient(context.Canceled))
	require.False(t, IsTransient(context.DeadlineExceeded))
}

func TestSQLDB_ErrorMessages(t *testing.T) {
	t.Parallel()

	connErr := &ConnectionError{URI: "sqlite:///x.db", Err: errors.New("boom")}
	require.Contains(t, connErr.Error(), "sqlite:///x.db")
	require.Contains(t, connErr.Error(), "boom")

	qErr := &QueryError{Query: "SELECT", Err: ErrEmptyQuery}
	require.ErrorIs(t, qErr, ErrEmptyQuery)
}
