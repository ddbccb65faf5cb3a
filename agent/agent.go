// Tool-calling agent loop.
//
// All question answering goes through this module.
//
// Information Hiding:
// - Loop internals hidden
// - LLM communication hidden
// - Tool execution coordination hidden
// - Transcript assembly hidden

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/richinex/sqlagent/llm"
	"github.com/richinex/sqlagent/metrics"
	"github.com/richinex/sqlagent/tools"
)

// Agent answers a question by letting the model call tools until it
// replies without tool calls.
type Agent struct {
	config       Config
	provider     llm.Provider
	toolRegistry *tools.Registry
	toolExecutor *tools.Executor
	log          *slog.Logger
}

// New creates a new agent with the given configuration and provider.
// Duplicate tool names are rejected.
func New(config Config, provider llm.Provider) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	registry := tools.NewRegistry()
	for _, tool := range config.Tools {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("agent: %w", err)
		}
	}

	return &Agent{
		config:       config,
		provider:     provider,
		toolRegistry: registry,
		toolExecutor: tools.NewDefaultExecutor(),
		log:          slog.New(slog.DiscardHandler),
	}, nil
}

// WithToolConfig overrides the tool execution configuration.
func (a *Agent) WithToolConfig(config tools.ToolConfig) *Agent {
	a.toolExecutor = tools.NewExecutor(config, tools.WithExecutorLogger(a.log))
	return a
}

// WithExecutor replaces the tool executor.
func (a *Agent) WithExecutor(exec *tools.Executor) *Agent {
	a.toolExecutor = exec
	return a
}

// WithLogger sets the logger.
func (a *Agent) WithLogger(log *slog.Logger) *Agent {
	if log != nil {
		a.log = log
	}
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.config.Name
}

// Description returns the agent's description.
func (a *Agent) Description() string {
	return a.config.Description
}

// Registry returns the agent's tools.
func (a *Agent) Registry() *tools.Registry {
	return a.toolRegistry
}

// Execute answers question without prior history.
func (a *Agent) Execute(ctx context.Context, question string) Response {
	return a.ExecuteWithHistory(ctx, question, nil)
}

// ExecuteWithHistory answers question after the given conversation.
func (a *Agent) ExecuteWithHistory(ctx context.Context, question string, history []llm.ChatMessage) Response {
	r := a.run(ctx, question, history)
	metrics.QuestionsTotal.WithLabelValues(r.Type.String()).Inc()
	a.log.Info("agent: finished",
		"agent", a.config.Name,
		"outcome", r.Type.String(),
		"llm_calls", r.Metadata.LLMCalls,
		"tool_calls", len(r.Metadata.ToolCalls),
		"duration_ms", r.Metadata.ExecutionTimeMs,
	)
	return r
}

// turn accumulates the state of one question.
type turn struct {
	start     time.Time
	steps     []Step
	toolCalls []ToolCall
	usage     llm.TokenUsage
	llmCalls  int
	messages  []llm.ChatMessage
	newFrom   int
}

func (t *turn) metadata(name string) Metadata {
	usage := t.usage
	return Metadata{
		ExecutionTimeMs: uint64(time.Since(t.start).Milliseconds()),
		AgentName:       name,
		ToolCalls:       t.toolCalls,
		TokenUsage:      &usage,
		LLMCalls:        t.llmCalls,
	}
}

func (t *turn) transcript() []llm.ChatMessage {
	return append([]llm.ChatMessage(nil), t.messages[t.newFrom:]...)
}

func (a *Agent) run(ctx context.Context, question string, history []llm.ChatMessage) Response {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	t := &turn{start: time.Now()}
	if a.config.SystemPrompt != "" && (len(history) == 0 || history[0].Role != llm.RoleSystem) {
		t.messages = append(t.messages, llm.SystemMessage(a.config.SystemPrompt))
	}
	t.messages = append(t.messages, history...)
	t.newFrom = len(t.messages)
	t.messages = append(t.messages, llm.UserMessage(question))

	defs := a.toolRegistry.Definitions()
	maxIterations := a.config.maxIterations()

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return a.failure(t, fmt.Errorf("execution cancelled: %w", err))
		}

		a.log.Info("agent: starting round", "agent", a.config.Name, "round", iteration+1, "max", maxIterations)

		resp, err := a.provider.ChatWithTools(ctx, t.messages, defs)
		t.llmCalls++
		if err != nil {
			metrics.LLMCallsTotal.WithLabelValues(a.provider.Name(), metrics.StatusError).Inc()
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
				err = fmt.Errorf("%w: %w", ctxErr, err)
			}
			return a.failure(t, err)
		}
		metrics.LLMCallsTotal.WithLabelValues(a.provider.Name(), metrics.StatusSuccess).Inc()
		a.recordUsage(t, resp.Usage)

		if len(resp.ToolCalls) == 0 {
			t.messages = append(t.messages, llm.AssistantMessage(resp.Content))
			t.steps = append(t.steps, Step{Iteration: iteration, Observation: resp.Content})
			return Response{
				Type:     ResponseSuccess,
				Result:   resp.Content,
				Steps:    t.steps,
				Messages: t.transcript(),
				Metadata: t.metadata(a.config.Name),
			}
		}

		t.messages = append(t.messages, llm.AssistantToolCallMessage(resp.Content, resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			output, isError, err := a.executeTool(ctx, t, call)
			if err != nil {
				return a.failure(t, err)
			}
			t.messages = append(t.messages, llm.ToolResultMessage(call, output, isError))
			t.steps = append(t.steps, Step{
				Iteration:   iteration,
				Thought:     resp.Content,
				Action:      call.Name,
				Input:       call.Arguments,
				Observation: output,
				IsError:     isError,
			})
		}
	}

	a.log.Warn("agent: iteration limit reached", "agent", a.config.Name, "max", maxIterations)
	return Response{
		Type:          ResponseTimeout,
		PartialResult: fmt.Sprintf("Max iterations reached (%d) without a final answer", maxIterations),
		Steps:         t.steps,
		Messages:      t.transcript(),
		Metadata:      t.metadata(a.config.Name),
	}
}

// executeTool runs one call and returns the text for the model. A non-nil
// error aborts the question.
func (a *Agent) executeTool(ctx context.Context, t *turn, call llm.ToolCall) (string, bool, error) {
	tool, exists := a.toolRegistry.Get(call.Name)
	if !exists {
		a.log.Warn("agent: unknown tool requested", "tool", call.Name)
		t.toolCalls = append(t.toolCalls, ToolCall{Name: call.Name, InputSize: len(call.Arguments)})
		return fmt.Sprintf("Error: %v: %q. Available tools: %v", tools.ErrUnknownTool, call.Name, a.toolRegistry.Names()), true, nil
	}

	a.log.Debug("agent: calling tool", "tool", call.Name, "args", string(call.Arguments))
	start := time.Now()
	result, err := a.toolExecutor.Execute(ctx, tool, call.Arguments)
	if err != nil {
		t.toolCalls = append(t.toolCalls, ToolCall{
			Name:       call.Name,
			InputSize:  len(call.Arguments),
			DurationMs: uint64(time.Since(start).Milliseconds()),
		})
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", false, err
	}

	text := result.Text()
	t.toolCalls = append(t.toolCalls, ToolCall{
		Name:       call.Name,
		InputSize:  len(call.Arguments),
		OutputSize: len(text),
		DurationMs: uint64(time.Since(start).Milliseconds()),
		Success:    result.Success(),
	})
	if !result.Success() {
		a.log.Debug("agent: tool returned error", "tool", call.Name, "error", result.Error)
	}
	return text, !result.Success(), nil
}

func (a *Agent) recordUsage(t *turn, usage *llm.TokenUsage) {
	if usage == nil {
		return
	}
	t.usage.Add(usage)
	metrics.LLMTokensTotal.WithLabelValues(a.provider.Name(), "prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(a.provider.Name(), "completion").Add(float64(usage.CompletionTokens))
}

func (a *Agent) failure(t *turn, err error) Response {
	a.log.Error("agent: failed", "agent", a.config.Name, "error", err)
	return Response{
		Type:     ResponseFailure,
		Error:    err.Error(),
		Err:      err,
		Steps:    t.steps,
		Messages: t.transcript(),
		Metadata: t.metadata(a.config.Name),
	}
}
