// Package sqldb is the database connector: a read-only handle over a single
// database file plus the introspection the SQL tools need.
//
// Information Hiding:
// - Driver selection and read-only DSNs per dialect
// - Catalog queries for table names and CREATE statements
// - Sample-row rendering and schema caching
// - Statement guarding before anything reaches the driver
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Options tune a Database.
type Options struct {
	// SampleRows is the number of rows shown under each CREATE statement.
	SampleRows int
	// MaxRows caps the rows returned by Run.
	MaxRows int
	// QueryTimeout bounds each Run and Check call; zero disables it.
	QueryTimeout time.Duration
	// SchemaCacheTTL controls how long table info is reused.
	SchemaCacheTTL time.Duration
	Logger         *slog.Logger
}

// DefaultOptions returns the connector defaults.
func DefaultOptions() Options {
	return Options{
		SampleRows:     3,
		MaxRows:        50,
		QueryTimeout:   30 * time.Second,
		SchemaCacheTTL: 10 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRows < 0 {
		o.SampleRows = 0
	}
	if o.MaxRows <= 0 {
		o.MaxRows = d.MaxRows
	}
	if o.SchemaCacheTTL <= 0 {
		o.SchemaCacheTTL = d.SchemaCacheTTL
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Database is an immutable, read-only handle. It is safe for concurrent use.
type Database struct {
	db      *sql.DB
	adapter adapter
	dialect Dialect
	path    string
	opts    Options
	log     *slog.Logger
	cache   *ttlcache.Cache[string, string]
}

// Open parses uri, opens the file read-only and checks it by listing tables.
// Every failure is a *ConnectionError; a missing file wraps fs.ErrNotExist.
func Open(ctx context.Context, uri string, opts Options) (*Database, error) {
	dialect, path, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &ConnectionError{URI: uri, Err: err}
	}
	if info.IsDir() {
		return nil, &ConnectionError{URI: uri, Err: fmt.Errorf("%s is a directory", path)}
	}

	ad, err := adapterFor(dialect)
	if err != nil {
		return nil, &ConnectionError{URI: uri, Err: err}
	}

	dsn, err := ad.readOnlyDSN(path)
	if err != nil {
		return nil, &ConnectionError{URI: uri, Err: err}
	}

	db, err := sql.Open(ad.driverName(), dsn)
	if err != nil {
		return nil, &ConnectionError{URI: uri, Err: err}
	}

	d := &Database{
		db:      db,
		adapter: ad,
		dialect: dialect,
		path:    path,
		opts:    opts,
		log:     opts.Logger,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, string](opts.SchemaCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}

	tables, err := d.TableNames(ctx)
	if err != nil {
		_ = db.Close()
		return nil, &ConnectionError{URI: uri, Err: err}
	}

	d.log.Info("sqldb: opened database", "dialect", dialect, "path", path, "tables", len(tables))
	return d, nil
}

// Dialect returns the SQL variant, e.g. "sqlite".
func (d *Database) Dialect() string { return string(d.dialect) }

// URI returns the canonical <dialect>:///<path> connection string.
func (d *Database) URI() string { return FormatURI(d.dialect, d.path) }

// SampleRows returns the configured sample row count.
func (d *Database) SampleRows() int { return d.opts.SampleRows }

// Close releases the underlying pool.
func (d *Database) Close() error {
	d.cache.DeleteAll()
	return d.db.Close()
}

// TableNames returns the user tables in name order.
func (d *Database) TableNames(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, d.adapter.listTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// TableInfo returns the CREATE statement and sample rows for each table,
// separated by blank lines. An empty list means every table. Unknown names
// fail with ErrUnknownTable before anything is rendered.
func (d *Database) TableInfo(ctx context.Context, tables []string) (string, error) {
	all, err := d.TableNames(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		tables = all
	}

	known := make(map[string]string, len(all))
	for _, name := range all {
		known[strings.ToLower(name)] = name
	}

	resolved := make([]string, 0, len(tables))
	var missing []string
	for _, t := range tables {
		name, ok := known[strings.ToLower(strings.TrimSpace(t))]
		if !ok {
			missing = append(missing, strings.TrimSpace(t))
			continue
		}
		resolved = append(resolved, name)
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, strings.Join(missing, ", "))
	}

	parts := make([]string, 0, len(resolved))
	for _, name := range resolved {
		info, err := d.tableInfo(ctx, name)
		if err != nil {
			return "", err
		}
		parts = append(parts, info)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (d *Database) tableInfo(ctx context.Context, table string) (string, error) {
	if item := d.cache.Get(table); item != nil {
		return item.Value(), nil
	}

	stmt, err := d.adapter.createStatement(ctx, d.db, table)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
		}
		return "", fmt.Errorf("schema for %s: %w", table, err)
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(stmt))

	if d.opts.SampleRows > 0 {
		sample, err := d.sampleRows(ctx, table)
		if err != nil {
			return "", err
		}
		sb.WriteString("\n\n/*\n")
		sb.WriteString(fmt.Sprintf("%d rows from %s table:\n", d.opts.SampleRows, table))
		sb.WriteString(sample)
		sb.WriteString("*/")
	}

	info := sb.String()
	d.cache.Set(table, info, ttlcache.DefaultTTL)
	return info, nil
}

func (d *Database) sampleRows(ctx context.Context, table string) (string, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), d.opts.SampleRows)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("sample rows for %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("sample rows for %s: %w", table, err)
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(columns, "\t"))
	sb.WriteString("\n")
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return "", fmt.Errorf("sample rows for %s: %w", table, err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatValue(v)
		}
		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteString("\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("sample rows for %s: %w", table, err)
	}
	return sb.String(), nil
}

// Run guards and executes query, returning at most MaxRows rows.
// Every failure is a *QueryError.
func (d *Database) Run(ctx context.Context, query string) (*Result, error) {
	if err := CheckReadOnly(query); err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		if len(result.Rows) == d.opts.MaxRows {
			result.Truncated = true
			break
		}
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return nil, &QueryError{Query: query, Err: err}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	d.log.Debug("sqldb: query executed", "rows", len(result.Rows), "truncated", result.Truncated, "duration", time.Since(start))
	return result, nil
}

// Check guards query and asks the engine to compile it without running it.
// Syntax errors and unknown tables or columns surface as a *QueryError.
func (d *Database) Check(ctx context.Context, query string) error {
	if err := CheckReadOnly(query); err != nil {
		return &QueryError{Query: query, Err: err}
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	stmt, err := d.db.PrepareContext(ctx, query)
	if err != nil {
		return &QueryError{Query: query, Err: err}
	}
	return stmt.Close()
}

func (d *Database) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.opts.QueryTimeout)
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		// Drivers reuse byte buffers between rows.
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	return values, nil
}
