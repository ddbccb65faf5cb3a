package sqldb

import (
	"fmt"
	"strings"
)

// Dialect names the SQL variant spoken by a database engine.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectDuckDB Dialect = "duckdb"
)

func (d Dialect) String() string { return string(d) }

// ParseURI splits a connection string of the form <dialect>:///<path>.
// A bare path without a scheme is treated as SQLite.
func ParseURI(uri string) (Dialect, string, error) {
	scheme, path, found := strings.Cut(uri, "://")
	if !found {
		if strings.TrimSpace(uri) == "" {
			return "", "", &ConnectionError{URI: uri, Err: fmt.Errorf("empty database URI")}
		}
		return DialectSQLite, uri, nil
	}

	// The third slash separates the empty host from the path; an absolute
	// path therefore shows up as a fourth.
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", "", &ConnectionError{URI: uri, Err: fmt.Errorf("missing database path")}
	}

	switch Dialect(strings.ToLower(scheme)) {
	case DialectSQLite, "sqlite3":
		return DialectSQLite, path, nil
	case DialectDuckDB:
		return DialectDuckDB, path, nil
	default:
		return "", "", &ConnectionError{URI: uri, Err: fmt.Errorf("%w: %q", ErrUnsupportedDialect, scheme)}
	}
}

// FormatURI builds the canonical connection string for a dialect and path.
func FormatURI(d Dialect, path string) string {
	return fmt.Sprintf("%s:///%s", d, path)
}
