// Package mcpserver exposes the SQL toolkit over the Model Context Protocol.
//
// Information Hiding:
// - MCP SDK registration and transports hidden
// - Tool results mapped onto MCP text content
// - Tool execution goes through the same Executor the agent uses
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/richinex/sqlagent/tools"
)

const defaultName = "sqlagent"

// Config configures the server.
type Config struct {
	Logger   *slog.Logger
	Toolkit  *tools.SQLToolkit
	Executor *tools.Executor

	Name    string
	Version string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Toolkit == nil {
		return fmt.Errorf("toolkit is required")
	}
	if cfg.Executor == nil {
		cfg.Executor = tools.NewDefaultExecutor()
	}
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return nil
}

// Server serves the toolkit's tools to MCP clients.
type Server struct {
	log       *slog.Logger
	cfg       Config
	mcpServer *mcp.Server
}

// New registers every toolkit tool on a new MCP server.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate mcp server config: %w", err)
	}

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
	}

	for _, tool := range cfg.Toolkit.Tools() {
		sqlTool, ok := tool.(*tools.SQLTool)
		if !ok {
			return nil, fmt.Errorf("unexpected tool type %T", tool)
		}
		switch sqlTool.Kind() {
		case tools.KindListTables:
			addTool[tools.ListTablesInput](s, sqlTool)
		case tools.KindGetSchema:
			addTool[tools.SchemaInput](s, sqlTool)
		case tools.KindRunQuery, tools.KindCheckQuery:
			addTool[tools.QueryInput](s, sqlTool)
		default:
			return nil, fmt.Errorf("%w: %s", tools.ErrUnknownTool, sqlTool.Kind())
		}
	}

	return s, nil
}

func addTool[In any](s *Server, tool tools.Tool) {
	meta := tool.Metadata()
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        meta.Name,
		Description: meta.Description,
		InputSchema: meta.InputSchema,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		s.log.Debug("mcpserver: handling tool call", "tool", meta.Name)

		raw, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode arguments: %w", err)
		}

		res, err := s.cfg.Executor.Execute(ctx, tool, raw)
		if err != nil {
			s.log.Warn("mcpserver: tool failed", "tool", meta.Name, "error", err)
			return textResult("Error: "+err.Error(), true), nil, nil
		}
		return textResult(res.Text(), !res.Success()), nil, nil
	})
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Connect serves a single session over transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}

// Run serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcpserver: serving on stdio", "name", s.cfg.Name, "tools", len(s.cfg.Toolkit.Tools()))
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
