// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/richinex/sqlagent/llm"
)

// Step produces the response for one model call. It sees the full message
// list of that call so it can react to earlier tool results.
type Step func(messages []llm.ChatMessage) (llm.LLMResponse, error)

// Call records one request made to the provider.
type Call struct {
	Messages []llm.ChatMessage
	Tools    []llm.ToolDefinition
}

// Provider replays Steps in order. Once the script runs out it returns an
// error so a runaway loop fails loudly.
type Provider struct {
	mu    sync.Mutex
	steps []Step
	calls []Call
}

// New creates a provider that plays steps in order.
func New(steps ...Step) *Provider {
	return &Provider{steps: steps}
}

// Name returns "scripted".
func (p *Provider) Name() string { return "scripted" }

// Model returns "scripted-model".
func (p *Provider) Model() string { return "scripted-model" }

// Chat plays the next step without tools.
func (p *Provider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

// ChatWithTools plays the next step.
func (p *Provider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition) (llm.LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.LLMResponse{}, err
	}

	p.mu.Lock()
	idx := len(p.calls)
	p.calls = append(p.calls, Call{
		Messages: append([]llm.ChatMessage(nil), messages...),
		Tools:    append([]llm.ToolDefinition(nil), tools...),
	})
	p.mu.Unlock()

	if idx >= len(p.steps) {
		return llm.LLMResponse{}, &llm.ProviderError{
			Provider: p.Name(),
			Model:    p.Model(),
			Err:      fmt.Errorf("script exhausted after %d steps", len(p.steps)),
		}
	}
	return p.steps[idx](messages)
}

// Calls returns a copy of every request seen so far.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallCount returns the number of requests seen so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Answer is a step that returns a final text answer.
func Answer(text string) Step {
	return func([]llm.ChatMessage) (llm.LLMResponse, error) {
		return llm.LLMResponse{Content: text}, nil
	}
}

// AnswerFrom is a step that derives the final answer from the latest tool result.
func AnswerFrom(format func(lastToolResult string) string) Step {
	return func(messages []llm.ChatMessage) (llm.LLMResponse, error) {
		return llm.LLMResponse{Content: format(LastToolResult(messages))}, nil
	}
}

// CallTool is a step that requests a single tool call.
func CallTool(id, name string, args any) Step {
	return func([]llm.ChatMessage) (llm.LLMResponse, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return llm.LLMResponse{}, err
		}
		return llm.LLMResponse{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: raw}}}, nil
	}
}

// Fail is a step that returns err.
func Fail(err error) Step {
	return func([]llm.ChatMessage) (llm.LLMResponse, error) {
		return llm.LLMResponse{}, err
	}
}

// LastToolResult returns the content of the most recent tool message.
func LastToolResult(messages []llm.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleTool {
			return messages[i].Content
		}
	}
	return ""
}
