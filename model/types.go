// Package model provides domain types shared across packages.
package model

import "encoding/json"

// Step records one round of the agent loop: either a tool invocation and
// what it returned, or the final answer.
type Step struct {
	Iteration   int             `json:"iteration"`
	Thought     string          `json:"thought,omitempty"`
	Action      string          `json:"action,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Observation string          `json:"observation"`
	IsError     bool            `json:"is_error,omitempty"`
}

// IsFinal reports whether the step carries the final answer.
func (s Step) IsFinal() bool {
	return s.Action == ""
}

// ToolCall contains metrics about a tool invocation.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
}
