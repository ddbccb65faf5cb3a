// Package agent provides the tool-calling agent loop.
//
// Contains all types used by agents for steps and responses.
package agent

import (
	"github.com/richinex/sqlagent/llm"
	"github.com/richinex/sqlagent/model"
)

// Step is an alias for model.Step for agent reasoning steps.
type Step = model.Step

// ToolCall is an alias for model.ToolCall for tool call metadata.
type ToolCall = model.ToolCall

// Metadata contains metadata about agent execution.
type Metadata struct {
	ExecutionTimeMs uint64
	AgentName       string
	ToolCalls       []ToolCall
	TokenUsage      *llm.TokenUsage
	LLMCalls        int // Number of LLM calls made by this agent
}

// ResponseType indicates the type of agent response.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseFailure
	ResponseTimeout
)

func (t ResponseType) String() string {
	switch t {
	case ResponseSuccess:
		return "success"
	case ResponseFailure:
		return "failure"
	case ResponseTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Response represents a response from an agent execution.
type Response struct {
	Type          ResponseType
	Result        string // For Success
	Error         string // For Failure
	PartialResult string // For Timeout
	Err           error  // For Failure; matches *llm.ProviderError, context errors
	Steps         []Step

	// Messages is the transcript of this turn, from the question to the
	// final answer. It excludes the system prompt and the history passed in.
	Messages []llm.ChatMessage
	Metadata Metadata
}

// ResultText returns the result string (for success) or error (for failure).
func (r Response) ResultText() string {
	switch r.Type {
	case ResponseSuccess:
		return r.Result
	case ResponseFailure:
		return r.Error
	case ResponseTimeout:
		return r.PartialResult
	default:
		return ""
	}
}

// IsSuccess checks if the response was successful.
func (r Response) IsSuccess() bool {
	return r.Type == ResponseSuccess
}
