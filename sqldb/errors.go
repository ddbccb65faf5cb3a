package sqldb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotReadOnly is wrapped when a statement could modify the database.
	ErrNotReadOnly = errors.New("statement is not read-only")
	// ErrMultipleStatements is wrapped when more than one statement is supplied.
	ErrMultipleStatements = errors.New("only a single statement is allowed")
	// ErrEmptyQuery is wrapped when the query has no statement.
	ErrEmptyQuery = errors.New("empty query")
	// ErrUnknownTable is wrapped when schema is requested for a missing table.
	ErrUnknownTable = errors.New("table not found in database")
	// ErrUnsupportedDialect is wrapped when the URI scheme has no driver.
	ErrUnsupportedDialect = errors.New("unsupported dialect")
)

// ConnectionError reports that the database could not be opened or read.
type ConnectionError struct {
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a rejected or failing SQL statement.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying unchanged: a busy or
// locked file or a dropped connection. Syntax and name errors are not
// transient; the caller has to change the query.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "could not set lock")
}
