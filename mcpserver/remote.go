// Remote tools - makes tools served over MCP usable by the agent.
//
// Information Hiding:
// - MCP client session lifecycle hidden
// - Schema conversion hidden
// - Content flattening hidden

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/richinex/sqlagent/tools"
)

var clientImplementation = &mcp.Implementation{
	Name:    "sqlagent-client",
	Version: "dev",
}

// ToolManager holds the tools discovered on one MCP session.
// The caller must call Close() when done to release resources.
type ToolManager struct {
	session *mcp.ClientSession
	tools   []tools.Tool
}

// Dial connects to an MCP server over transport and discovers its tools.
func Dial(ctx context.Context, transport mcp.Transport) (*ToolManager, error) {
	client := mcp.NewClient(clientImplementation, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server: %w", err)
	}

	manager, err := DiscoverTools(ctx, session)
	if err != nil {
		session.Close()
		return nil, err
	}
	return manager, nil
}

// DiscoverTools lists the session's tools and wraps each one.
func DiscoverTools(ctx context.Context, session *mcp.ClientSession) (*ToolManager, error) {
	result, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	wrapped := make([]tools.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := toSchema(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		wrapped = append(wrapped, &remoteTool{
			session: session,
			meta: tools.ToolMetadata{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			},
		})
	}

	return &ToolManager{session: session, tools: wrapped}, nil
}

// Tools returns the discovered tools.
func (m *ToolManager) Tools() []tools.Tool {
	return m.tools
}

// Close closes the MCP session.
func (m *ToolManager) Close() error {
	if m.session != nil {
		return m.session.Close()
	}
	return nil
}

type remoteTool struct {
	session *mcp.ClientSession
	meta    tools.ToolMetadata
}

func (r *remoteTool) Metadata() tools.ToolMetadata { return r.meta }

// Validate checks that args are valid JSON; the server validates the schema.
func (r *remoteTool) Validate(args json.RawMessage) error {
	if len(args) == 0 {
		return nil
	}
	if !json.Valid(args) {
		return fmt.Errorf("invalid JSON arguments")
	}
	return nil
}

func (r *remoteTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var params any = map[string]any{}
	if len(args) > 0 {
		params = args
	}
	result, err := r.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      r.meta.Name,
		Arguments: params,
	})
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("tool call failed: %w", err)
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if result.IsError {
		return tools.FailureResultf("%s", strings.TrimPrefix(text, "Error: ")), nil
	}
	return tools.SuccessResult(text), nil
}

func toSchema(v any) (*jsonschema.Schema, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(*jsonschema.Schema); ok {
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode input schema: %w", err)
	}
	return &s, nil
}
