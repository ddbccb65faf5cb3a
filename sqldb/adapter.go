package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// adapter hides the per-engine driver name, read-only DSN and catalog queries.
type adapter interface {
	driverName() string
	readOnlyDSN(path string) (string, error)
	listTablesQuery() string
	createStatement(ctx context.Context, db *sql.DB, table string) (string, error)
}

func adapterFor(d Dialect) (adapter, error) {
	switch d {
	case DialectSQLite:
		return sqliteAdapter{}, nil
	case DialectDuckDB:
		return duckdbAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, d)
	}
}

type sqliteAdapter struct{}

func (sqliteAdapter) driverName() string { return "sqlite3" }

// mode=ro opens the file read-only; _query_only additionally makes the
// connection refuse writes to attached or temp databases. The path is
// percent-encoded so '?' and '#' in a file name stay part of the name.
func (sqliteAdapter) readOnlyDSN(path string) (string, error) {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro&_query_only=true", nil
}

func (sqliteAdapter) listTablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (sqliteAdapter) createStatement(ctx context.Context, db *sql.DB, table string) (string, error) {
	var stmt sql.NullString
	err := db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&stmt)
	if err != nil {
		return "", err
	}
	return stmt.String, nil
}

type duckdbAdapter struct{}

func (duckdbAdapter) driverName() string { return "duckdb" }

// The driver takes the path verbatim up to the first '?' and reads options
// from a URL parse of the whole DSN, so neither '?' nor '#' can be encoded.
func (duckdbAdapter) readOnlyDSN(path string) (string, error) {
	if strings.ContainsAny(path, "?#") {
		return "", fmt.Errorf("duckdb path %q must not contain '?' or '#'", path)
	}
	return path + "?access_mode=read_only", nil
}

func (duckdbAdapter) listTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' AND table_type = 'BASE TABLE' ORDER BY table_name`
}

func (duckdbAdapter) createStatement(ctx context.Context, db *sql.DB, table string) (string, error) {
	var stmt sql.NullString
	err := db.QueryRowContext(ctx, `SELECT sql FROM duckdb_tables() WHERE schema_name = 'main' AND table_name = ?`, table).Scan(&stmt)
	if err != nil {
		return "", err
	}
	return stmt.String, nil
}

// quoteIdent quotes an identifier for both supported dialects.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
