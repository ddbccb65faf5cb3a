package mcpserver_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/richinex/sqlagent/internal/testdb"
	"github.com/richinex/sqlagent/mcpserver"
	"github.com/richinex/sqlagent/sqldb"
	"github.com/richinex/sqlagent/tools"
)

func startServer(t *testing.T) (*mcpserver.ToolManager, string) {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	path := testdb.Chinook(t)
	db, err := sqldb.Open(ctx, testdb.URI(path), sqldb.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tk, err := tools.NewSQLToolkit(db, nil)
	require.NoError(t, err)

	srv, err := mcpserver.New(mcpserver.Config{Logger: log, Toolkit: tk, Version: "test"})
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	require.NoError(t, err)

	manager, err := mcpserver.Dial(ctx, clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = manager.Close()
		_ = ss.Wait()
	})
	return manager, path
}

func call(t *testing.T, manager *mcpserver.ToolManager, name string, args any) tools.ToolResult {
	t.Helper()
	for _, tool := range manager.Tools() {
		if tool.Metadata().Name != name {
			continue
		}
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		res, err := tool.Execute(context.Background(), raw)
		require.NoError(t, err)
		return res
	}
	t.Fatalf("tool %s not served", name)
	return tools.ToolResult{}
}

func TestMCPServer_ListsToolkit(t *testing.T) {
	t.Parallel()

	manager, _ := startServer(t)

	var names []string
	for _, tool := range manager.Tools() {
		names = append(names, tool.Metadata().Name)
		require.NotEmpty(t, tool.Metadata().Description)
	}
	require.ElementsMatch(t, []string{"sql_db_list_tables", "sql_db_schema", "sql_db_query", "sql_db_query_checker"}, names)

	for _, tool := range manager.Tools() {
		if tool.Metadata().Name == "sql_db_query" {
			require.NotNil(t, tool.Metadata().InputSchema)
			require.Contains(t, tool.Metadata().InputSchema.Properties, "query")
		}
	}
}

func TestMCPServer_RoundTrip(t *testing.T) {
	t.Parallel()

	manager, path := startServer(t)

	res := call(t, manager, "sql_db_list_tables", map[string]any{})
	require.True(t, res.Success(), res.Text())
	require.Equal(t, "Album, Artist, Track", res.Output)

	res = call(t, manager, "sql_db_schema", tools.SchemaInput{TableNames: "Artist"})
	require.True(t, res.Success(), res.Text())
	require.Contains(t, res.Output, "3 rows from Artist table:")

	res = call(t, manager, "sql_db_query", tools.QueryInput{Query: "SELECT COUNT(*) FROM Track"})
	require.True(t, res.Success(), res.Text())
	require.Contains(t, res.Output, strconv.Itoa(testdb.TrackCount))

	res = call(t, manager, "sql_db_query", tools.QueryInput{Query: "DELETE FROM Track"})
	require.False(t, res.Success())
	require.Contains(t, res.Text(), "not read-only")
	require.Equal(t, testdb.TrackCount, testdb.Count(t, path, "Track"))
}

func TestMCPServer_ConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := mcpserver.New(mcpserver.Config{})
	require.Error(t, err)

	_, err = mcpserver.New(mcpserver.Config{Logger: slog.Default()})
	require.Error(t, err)
}
