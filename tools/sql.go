// SQL toolkit.
//
// Information Hiding:
// - Argument decoding and validation hidden per tool kind
// - Database and query-review errors classified into tool failures
// - The closed set of kinds is the only way to build a SQL tool

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/richinex/sqlagent/llm"
	"github.com/richinex/sqlagent/prompt"
	"github.com/richinex/sqlagent/sqldb"
)

// Kind identifies one of the SQL tools.
type Kind int

const (
	KindListTables Kind = iota + 1
	KindGetSchema
	KindRunQuery
	KindCheckQuery
)

// Tool names as the model sees them.
const (
	NameListTables = "sql_db_list_tables"
	NameGetSchema  = "sql_db_schema"
	NameRunQuery   = "sql_db_query"
	NameCheckQuery = "sql_db_query_checker"
)

// ErrUnknownTool is returned by ParseKind for names outside the toolkit.
var ErrUnknownTool = errors.New("unknown tool")

// Kinds returns every kind in the order tools are offered to the model.
func Kinds() []Kind {
	return []Kind{KindListTables, KindGetSchema, KindRunQuery, KindCheckQuery}
}

func (k Kind) String() string {
	switch k {
	case KindListTables:
		return NameListTables
	case KindGetSchema:
		return NameGetSchema
	case KindRunQuery:
		return NameRunQuery
	case KindCheckQuery:
		return NameCheckQuery
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a tool name back to its kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds() {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Database is the part of sqldb.Database the toolkit needs.
type Database interface {
	Dialect() string
	TableNames(ctx context.Context) ([]string, error)
	TableInfo(ctx context.Context, tables []string) (string, error)
	Run(ctx context.Context, query string) (*sqldb.Result, error)
	Check(ctx context.Context, query string) error
}

var _ Database = (*sqldb.Database)(nil)

type ListTablesInput struct{}

type SchemaInput struct {
	TableNames string `json:"table_names" jsonschema:"Comma-separated list of table names, for example: Artist, Album"`
}

type QueryInput struct {
	Query string `json:"query" jsonschema:"A single read-only SQL query"`
}

var kindDescriptions = map[Kind]string{
	KindListTables: "Returns a comma-separated list of the tables in the database. Takes no arguments.",
	KindGetSchema: "Returns the schema and sample rows for the given tables. " +
		"Call " + NameListTables + " first to make sure the tables exist. " +
		"Input is a comma-separated list of table names.",
	KindRunQuery: "Runs a read-only SQL query and returns the result. " +
		"If the query fails an error message is returned; rewrite the query, check it and try again. " +
		"If a column is reported unknown, call " + NameGetSchema + " for the table.",
	KindCheckQuery: "Checks whether a SQL query is correct before running it. " +
		"Always use this tool before calling " + NameRunQuery + ".",
}

// SQLTool is a tool bound to one Kind.
type SQLTool struct {
	kind    Kind
	db      Database
	checker llm.Provider
	log     *slog.Logger
	meta    ToolMetadata
}

var _ Tool = (*SQLTool)(nil)

// SQLToolkit holds the four SQL tools built over one database.
type SQLToolkit struct {
	db      Database
	checker llm.Provider
	tools   []*SQLTool
}

// ToolkitOption customizes a SQLToolkit.
type ToolkitOption func(*toolkitOptions)

type toolkitOptions struct {
	log *slog.Logger
}

// WithToolkitLogger sets the logger passed to every tool.
func WithToolkitLogger(log *slog.Logger) ToolkitOption {
	return func(o *toolkitOptions) { o.log = log }
}

// NewSQLToolkit builds the toolkit. checker may be nil, in which case the
// check-query tool only validates the query against the database.
func NewSQLToolkit(db Database, checker llm.Provider, opts ...ToolkitOption) (*SQLToolkit, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	o := toolkitOptions{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	tk := &SQLToolkit{db: db, checker: checker}
	for _, k := range Kinds() {
		t, err := newSQLTool(k, db, checker, o.log)
		if err != nil {
			return nil, err
		}
		tk.tools = append(tk.tools, t)
	}
	return tk, nil
}

func newSQLTool(k Kind, db Database, checker llm.Provider, log *slog.Logger) (*SQLTool, error) {
	var (
		schema *jsonschema.Schema
		err    error
	)
	switch k {
	case KindListTables:
		schema, err = jsonschema.For[ListTablesInput](nil)
	case KindGetSchema:
		schema, err = jsonschema.For[SchemaInput](nil)
	case KindRunQuery, KindCheckQuery:
		schema, err = jsonschema.For[QueryInput](nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s input schema: %w", k, err)
	}

	return &SQLTool{
		kind:    k,
		db:      db,
		checker: checker,
		log:     log,
		meta: ToolMetadata{
			Name:        k.String(),
			Description: kindDescriptions[k],
			InputSchema: schema,
		},
	}, nil
}

// Tools returns the tools in Kinds order.
func (tk *SQLToolkit) Tools() []Tool {
	out := make([]Tool, len(tk.tools))
	for i, t := range tk.tools {
		out[i] = t
	}
	return out
}

// Tool returns the tool for k.
func (tk *SQLToolkit) Tool(k Kind) (*SQLTool, bool) {
	for _, t := range tk.tools {
		if t.kind == k {
			return t, true
		}
	}
	return nil, false
}

// Registry returns a new registry holding the toolkit's tools.
func (tk *SQLToolkit) Registry() (*Registry, error) {
	r := NewRegistry()
	for _, t := range tk.tools {
		if err := r.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", t.kind, err)
		}
	}
	return r, nil
}

// Kind returns the tool's kind.
func (t *SQLTool) Kind() Kind { return t.kind }

func (t *SQLTool) Metadata() ToolMetadata { return t.meta }

// Validate decodes args and checks required fields.
func (t *SQLTool) Validate(args json.RawMessage) error {
	switch t.kind {
	case KindListTables:
		return nil
	case KindGetSchema:
		in, err := decodeArgs[SchemaInput](args)
		if err != nil {
			return err
		}
		if len(splitTableNames(in.TableNames)) == 0 {
			return fmt.Errorf("table_names is required")
		}
	case KindRunQuery, KindCheckQuery:
		in, err := decodeArgs[QueryInput](args)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Query) == "" {
			return fmt.Errorf("query is required")
		}
	}
	return nil
}

// Execute dispatches on the tool's kind.
func (t *SQLTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	switch t.kind {
	case KindListTables:
		return t.listTables(ctx)
	case KindGetSchema:
		in, err := decodeArgs[SchemaInput](args)
		if err != nil {
			return FailureResult(err), nil
		}
		return t.schema(ctx, splitTableNames(in.TableNames))
	case KindRunQuery:
		in, err := decodeArgs[QueryInput](args)
		if err != nil {
			return FailureResult(err), nil
		}
		return t.query(ctx, in.Query)
	case KindCheckQuery:
		in, err := decodeArgs[QueryInput](args)
		if err != nil {
			return FailureResult(err), nil
		}
		return t.check(ctx, in.Query)
	default:
		return ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, t.kind)
	}
}

func (t *SQLTool) listTables(ctx context.Context) (ToolResult, error) {
	names, err := t.db.TableNames(ctx)
	if err != nil {
		return t.fail(err)
	}
	return SuccessResult(strings.Join(names, ", ")), nil
}

func (t *SQLTool) schema(ctx context.Context, tables []string) (ToolResult, error) {
	t.log.Debug("tools: fetching schema", "tables", tables)
	info, err := t.db.TableInfo(ctx, tables)
	if err != nil {
		return t.fail(err)
	}
	return SuccessResult(info), nil
}

func (t *SQLTool) query(ctx context.Context, query string) (ToolResult, error) {
	t.log.Debug("tools: running query", "query", query)
	res, err := t.db.Run(ctx, query)
	if err != nil {
		return t.fail(err)
	}
	return SuccessResult(res.String()), nil
}

func (t *SQLTool) check(ctx context.Context, query string) (ToolResult, error) {
	if err := t.db.Check(ctx, query); err != nil {
		return t.fail(err)
	}
	if t.checker == nil {
		return SuccessResult(strings.TrimSpace(query)), nil
	}

	text, err := prompt.QueryChecker(t.db.Dialect(), query)
	if err != nil {
		return ToolResult{}, err
	}
	resp, err := t.checker.Chat(ctx, []llm.ChatMessage{llm.UserMessage(text)})
	if err != nil {
		return ToolResult{}, err
	}
	reviewed := prompt.StripCodeFence(resp.Content)
	if reviewed == "" {
		reviewed = strings.TrimSpace(query)
	}
	t.log.Debug("tools: query reviewed", "changed", reviewed != strings.TrimSpace(query))
	return SuccessResult(reviewed), nil
}

// fail turns a database error into a result the model can read, except for
// transient errors which go back to the Executor for another attempt.
func (t *SQLTool) fail(err error) (ToolResult, error) {
	if sqldb.IsTransient(err) {
		return ToolResult{}, err
	}
	return FailureResult(err), nil
}

func decodeArgs[T any](args json.RawMessage) (T, error) {
	var in T
	if len(args) == 0 || string(args) == "null" {
		return in, nil
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	return in, nil
}

func splitTableNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
