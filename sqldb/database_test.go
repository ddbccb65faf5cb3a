package sqldb_test

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richinex/sqlagent/internal/testdb"
	"github.com/richinex/sqlagent/sqldb"
)

func openChinook(t *testing.T, opts sqldb.Options) (*sqldb.Database, string) {
	t.Helper()
	path := testdb.Chinook(t)
	db, err := sqldb.Open(context.Background(), testdb.URI(path), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func TestSQLDB_Open(t *testing.T) {
	t.Parallel()

	t.Run("reports dialect and uri", func(t *testing.T) {
		t.Parallel()

		db, path := openChinook(t, sqldb.DefaultOptions())
		require.Equal(t, "sqlite", db.Dialect())
		require.NotEmpty(t, db.Dialect())
		require.Equal(t, "sqlite:///"+path, db.URI())
		require.Equal(t, 3, db.SampleRows())
	})

	t.Run("missing file is a connection error", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "nope.db")
		_, err := sqldb.Open(context.Background(), testdb.URI(missing), sqldb.DefaultOptions())
		var connErr *sqldb.ConnectionError
		require.ErrorAs(t, err, &connErr)
		require.ErrorIs(t, err, fs.ErrNotExist)
		_, statErr := os.Stat(missing)
		require.ErrorIs(t, statErr, fs.ErrNotExist, "opening must not create the file")
	})

	t.Run("non-database file is a connection error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "garbage.db")
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a database ", 100)), 0o600))
		_, err := sqldb.Open(context.Background(), testdb.URI(path), sqldb.DefaultOptions())
		var connErr *sqldb.ConnectionError
		require.ErrorAs(t, err, &connErr)
	})

	t.Run("directory is a connection error", func(t *testing.T) {
		t.Parallel()

		_, err := sqldb.Open(context.Background(), testdb.URI(t.TempDir()), sqldb.DefaultOptions())
		var connErr *sqldb.ConnectionError
		require.ErrorAs(t, err, &connErr)
	})

	t.Run("unsupported dialect", func(t *testing.T) {
		t.Parallel()

		_, err := sqldb.Open(context.Background(), "oracle:///x.db", sqldb.DefaultOptions())
		require.ErrorIs(t, err, sqldb.ErrUnsupportedDialect)
	})
}

func TestSQLDB_TableNames(t *testing.T) {
	t.Parallel()

	db, _ := openChinook(t, sqldb.DefaultOptions())
	names, err := db.TableNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Album", "Artist", "Track"}, names)
}

func TestSQLDB_TableInfo(t *testing.T) {
	t.Parallel()

	db, _ := openChinook(t, sqldb.DefaultOptions())
	ctx := context.Background()

	t.Run("create statement and sample rows", func(t *testing.T) {
		info, err := db.TableInfo(ctx, []string{"Artist"})
		require.NoError(t, err)
		require.Contains(t, info, `CREATE TABLE "Artist"`)
		require.Contains(t, info, "/*\n3 rows from Artist table:\nArtistId\tName\n")
		require.Contains(t, info, "1\tAC/DC\n")
		require.Contains(t, info, "3\tAerosmith\n")
		require.NotContains(t, info, "Alanis Morissette", "only three sample rows")
		require.True(t, strings.HasSuffix(info, "*/"))
	})

	t.Run("case-insensitive names", func(t *testing.T) {
		info, err := db.TableInfo(ctx, []string{" track ", "album"})
		require.NoError(t, err)
		require.Contains(t, info, "3 rows from Track table")
		require.Contains(t, info, "3 rows from Album table")
	})

	t.Run("empty list describes every table", func(t *testing.T) {
		info, err := db.TableInfo(ctx, nil)
		require.NoError(t, err)
		require.Equal(t, 3, strings.Count(info, "CREATE TABLE"))
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := db.TableInfo(ctx, []string{"Artist", "Customers"})
		require.ErrorIs(t, err, sqldb.ErrUnknownTable)
		require.Contains(t, err.Error(), "Customers")
	})

	t.Run("cached result is stable", func(t *testing.T) {
		first, err := db.TableInfo(ctx, []string{"Album"})
		require.NoError(t, err)
		second, err := db.TableInfo(ctx, []string{"Album"})
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestSQLDB_TableInfo_NoSamples(t *testing.T) {
	t.Parallel()

	db, _ := openChinook(t, sqldb.Options{SampleRows: 0})
	info, err := db.TableInfo(context.Background(), []string{"Artist"})
	require.NoError(t, err)
	require.NotContains(t, info, "rows from")
}

func TestSQLDB_Run(t *testing.T) {
	t.Parallel()

	db, _ := openChinook(t, sqldb.Options{MaxRows: 5, SampleRows: 3})
	ctx := context.Background()

	t.Run("count", func(t *testing.T) {
		res, err := db.Run(ctx, "SELECT COUNT(*) AS n FROM Track")
		require.NoError(t, err)
		require.Equal(t, []string{"n"}, res.Columns)
		require.Equal(t, 1, res.Len())
		require.EqualValues(t, testdb.TrackCount, res.Rows[0][0])
		require.Contains(t, res.String(), "3503")
	})

	t.Run("truncates at max rows", func(t *testing.T) {
		res, err := db.Run(ctx, "SELECT TrackId FROM Track ORDER BY TrackId")
		require.NoError(t, err)
		require.Equal(t, 5, res.Len())
		require.True(t, res.Truncated)
		require.Contains(t, res.String(), "showing first 5 rows")
	})

	t.Run("no rows", func(t *testing.T) {
		res, err := db.Run(ctx, "SELECT Name FROM Artist WHERE ArtistId < 0")
		require.NoError(t, err)
		require.Equal(t, "Query returned no rows.", res.String())
	})

	t.Run("records", func(t *testing.T) {
		res, err := db.Run(ctx, "SELECT ArtistId, Name FROM Artist ORDER BY ArtistId LIMIT 2")
		require.NoError(t, err)
		recs := res.Records()
		require.Len(t, recs, 2)
		require.Equal(t, "AC/DC", recs[0]["Name"])
	})

	t.Run("syntax error is a query error", func(t *testing.T) {
		_, err := db.Run(ctx, "SELECT FROM WHERE")
		var qErr *sqldb.QueryError
		require.ErrorAs(t, err, &qErr)
		require.Equal(t, "SELECT FROM WHERE", qErr.Query)
	})

	t.Run("unknown column is a query error", func(t *testing.T) {
		_, err := db.Run(ctx, "SELECT Composer FROM Track")
		var qErr *sqldb.QueryError
		require.ErrorAs(t, err, &qErr)
		require.Contains(t, err.Error(), "Composer")
	})
}

func TestSQLDB_Run_RejectsMutations(t *testing.T) {
	t.Parallel()

	db, path := openChinook(t, sqldb.DefaultOptions())
	ctx := context.Background()

	for _, q := range []string{
		"INSERT INTO Artist (ArtistId, Name) VALUES (99, 'x')",
		"UPDATE Track SET Name = 'x'",
		"DELETE FROM Track",
		"DROP TABLE Track",
	} {
		_, err := db.Run(ctx, q)
		require.ErrorIs(t, err, sqldb.ErrNotReadOnly, q)
	}

	require.Equal(t, testdb.TrackCount, testdb.Count(t, path, "Track"))
	require.Equal(t, len(testdb.Artists), testdb.Count(t, path, "Artist"))
}

// The driver-level read-only mode is a second barrier behind the guard.
func TestSQLDB_ReadOnlyHandle(t *testing.T) {
	t.Parallel()

	path := testdb.Chinook(t)
	raw, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_query_only=true")
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Exec("DELETE FROM Track")
	require.Error(t, err)
	require.Equal(t, testdb.TrackCount, testdb.Count(t, path, "Track"))
}

func TestSQLDB_Check(t *testing.T) {
	t.Parallel()

	db, path := openChinook(t, sqldb.DefaultOptions())
	ctx := context.Background()

	require.NoError(t, db.Check(ctx, "SELECT Name FROM Artist LIMIT 5"))

	var qErr *sqldb.QueryError
	require.ErrorAs(t, db.Check(ctx, "SELECT Nme FROM Artist"), &qErr)
	require.ErrorAs(t, db.Check(ctx, "SELEC Name FROM Artist"), &qErr)
	require.ErrorIs(t, db.Check(ctx, "DELETE FROM Artist"), sqldb.ErrNotReadOnly)
	require.Equal(t, len(testdb.Artists), testdb.Count(t, path, "Artist"))
}

func TestSQLDB_ConcurrentReads(t *testing.T) {
	t.Parallel()

	db, _ := openChinook(t, sqldb.DefaultOptions())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.Run(ctx, "SELECT COUNT(*) FROM Track"); err != nil {
				errs <- err
			}
			if _, err := db.TableInfo(ctx, []string{"Track"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
