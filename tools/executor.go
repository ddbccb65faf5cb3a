// Tool Executor with Retry Logic.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Error classification logic hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/richinex/sqlagent/metrics"
	"github.com/richinex/sqlagent/sqldb"
)

// Executor provides tool execution with retry and timeout support.
type Executor struct {
	config    ToolConfig
	retryable func(error) bool
	log       *slog.Logger
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithRetryable replaces the transient-error classifier.
func WithRetryable(fn func(error) bool) ExecutorOption {
	return func(e *Executor) { e.retryable = fn }
}

// WithExecutorLogger sets the logger used for retry messages.
func WithExecutorLogger(log *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ToolConfig, opts ...ExecutorOption) *Executor {
	e := &Executor{
		config:    config,
		retryable: sqldb.IsTransient,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultToolConfig())
}

// Execute validates args and runs the tool under the configured timeout.
// Transient errors are retried with exponential backoff and, once retries
// run out, reported as a failed ToolResult like any other database error.
// A non-nil error means the tool hit something the model cannot fix, such
// as a cancelled context or a failing provider.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	name := tool.Metadata().Name
	start := time.Now()

	if err := tool.Validate(args); err != nil {
		e.record(name, start, false)
		return FailureResult(fmt.Errorf("invalid arguments for %s: %w", name, err)), nil
	}

	attempt := 0
	result, err := backoff.Retry(ctx, func() (ToolResult, error) {
		attempt++
		if attempt > 1 {
			metrics.ToolRetriesTotal.WithLabelValues(name).Inc()
			e.log.Debug("tools: retrying", "tool", name, "attempt", attempt)
		}

		callCtx, cancel := context.WithTimeout(ctx, e.config.timeout())
		defer cancel()

		res, err := tool.Execute(callCtx, args)
		if err != nil {
			if e.retryable(err) {
				return ToolResult{}, err
			}
			return ToolResult{}, backoff.Permanent(err)
		}
		return res, nil
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(uint(e.config.retries()+1)),
	)
	if err != nil {
		e.record(name, start, false)
		if e.retryable(err) {
			return FailureResultf("tool '%s' failed after %d attempts: %v", name, attempt, err), nil
		}
		return ToolResult{}, fmt.Errorf("tool '%s': %w", name, err)
	}

	e.record(name, start, result.Success())
	return result, nil
}

// ExecuteWithTimeout runs a tool with a specific overall timeout.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, tool Tool, args json.RawMessage, timeout time.Duration) (ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, tool, args)
}

// ExecuteOnce runs a tool once without retries.
func ExecuteOnce(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := tool.Validate(args); err != nil {
		return FailureResult(fmt.Errorf("validation failed: %w", err)), nil
	}

	return tool.Execute(ctx, args)
}

func (e *Executor) record(name string, start time.Time, ok bool) {
	status := metrics.StatusSuccess
	if !ok {
		status = metrics.StatusError
	}
	metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
