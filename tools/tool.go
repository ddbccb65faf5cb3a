// Package tools provides the tool system for agents.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/richinex/sqlagent/llm"
)

// ToolMetadata describes what a tool does and how to use it.
type ToolMetadata struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Parameters returns the input schema as a plain JSON object.
func (m ToolMetadata) Parameters() map[string]any {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	if m.InputSchema == nil {
		return params
	}
	raw, err := json.Marshal(m.InputSchema)
	if err != nil {
		return params
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return params
	}
	if _, ok := decoded["properties"]; !ok {
		decoded["properties"] = map[string]any{}
	}
	return decoded
}

// Definition converts the metadata into the form sent to a model.
func (m ToolMetadata) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        m.Name,
		Description: m.Description,
		Parameters:  m.Parameters(),
	}
}

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil.
type ToolResult struct {
	Output string `json:"output"`
	Error  error  `json:"-"` // Excluded from JSON, use MarshalJSON for custom serialization
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Output  string `json:"output,omitempty"`
			Error   string `json:"error"`
		}{
			Success: false,
			Output:  t.Output,
			Error:   t.Error.Error(),
		})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}{
		Success: true,
		Output:  t.Output,
	})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// Text is what the model sees: the output, or the error prefixed with
// "Error: " so it can correct itself.
func (t ToolResult) Text() string {
	if t.Error != nil {
		return "Error: " + t.Error.Error()
	}
	return t.Output
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Execute reports problems the model can act on (bad SQL, unknown tables)
// through ToolResult.Error. The returned error is reserved for failures of
// the environment, which the Executor may retry.
type Tool interface {
	// Metadata returns tool metadata (name, description, input schema).
	Metadata() ToolMetadata

	// Execute runs the tool with given arguments.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)

	// Validate validates arguments before execution.
	Validate(args json.RawMessage) error
}

// BaseTool provides a default implementation for Validate.
type BaseTool struct{}

// Validate provides a default no-op validation.
func (BaseTool) Validate(args json.RawMessage) error {
	return nil
}

// ToolConfig holds tool execution configuration.
// The zero value is safe: timeout defaults to 30s and retries to 3.
type ToolConfig struct {
	Timeout    time.Duration
	MaxRetries int
	NoRetry    bool
}

// timeout returns the configured timeout, defaulting to 30 seconds if zero.
func (c ToolConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

// retries returns the number of retries after the first attempt.
func (c ToolConfig) retries() int {
	if c.NoRetry {
		return 0
	}
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// DefaultToolConfig returns the default tool configuration.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}
