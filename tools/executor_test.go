package tools

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedTool fails with errs in order and then succeeds.
type scriptedTool struct {
	BaseTool
	errs     []error
	calls    atomic.Int32
	validate error
}

func (s *scriptedTool) Metadata() ToolMetadata {
	return ToolMetadata{Name: "scripted", Description: "test tool"}
}

func (s *scriptedTool) Validate(json.RawMessage) error { return s.validate }

func (s *scriptedTool) Execute(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
	n := int(s.calls.Add(1))
	if n <= len(s.errs) {
		return ToolResult{}, s.errs[n-1]
	}
	return SuccessResult("ok"), nil
}

func fastConfig(retries int) ToolConfig {
	return ToolConfig{Timeout: time.Second, MaxRetries: retries}
}

func TestExecutor_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	tool := &scriptedTool{errs: []error{driver.ErrBadConn, errors.New("database is locked")}}
	res, err := NewExecutor(fastConfig(3)).Execute(context.Background(), tool, nil)
	require.NoError(t, err)
	require.True(t, res.Success())
	require.Equal(t, "ok", res.Output)
	require.EqualValues(t, 3, tool.calls.Load())
}

func TestExecutor_ExhaustedRetriesBecomeFailureResult(t *testing.T) {
	t.Parallel()

	tool := &scriptedTool{errs: []error{driver.ErrBadConn, driver.ErrBadConn, driver.ErrBadConn}}
	res, err := NewExecutor(fastConfig(1)).Execute(context.Background(), tool, nil)
	require.NoError(t, err)
	require.False(t, res.Success())
	require.Contains(t, res.Text(), "after 2 attempts")
	require.EqualValues(t, 2, tool.calls.Load())
}

func TestExecutor_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tool := &scriptedTool{errs: []error{boom}}
	_, err := NewExecutor(fastConfig(3)).Execute(context.Background(), tool, nil)
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 1, tool.calls.Load())
}

func TestExecutor_NoRetry(t *testing.T) {
	t.Parallel()

	tool := &scriptedTool{errs: []error{driver.ErrBadConn}}
	res, err := NewExecutor(ToolConfig{NoRetry: true}).Execute(context.Background(), tool, nil)
	require.NoError(t, err)
	require.False(t, res.Success())
	require.EqualValues(t, 1, tool.calls.Load())
}

func TestExecutor_CustomClassifier(t *testing.T) {
	t.Parallel()

	flaky := errors.New("flaky")
	tool := &scriptedTool{errs: []error{flaky}}
	exec := NewExecutor(fastConfig(2), WithRetryable(func(err error) bool { return errors.Is(err, flaky) }))
	res, err := exec.Execute(context.Background(), tool, nil)
	require.NoError(t, err)
	require.True(t, res.Success())
	require.EqualValues(t, 2, tool.calls.Load())
}

func TestExecutor_ValidationFailureSkipsExecute(t *testing.T) {
	t.Parallel()

	tool := &scriptedTool{validate: errors.New("query is required")}
	res, err := NewExecutor(fastConfig(3)).Execute(context.Background(), tool, nil)
	require.NoError(t, err)
	require.False(t, res.Success())
	require.Contains(t, res.Text(), "invalid arguments for scripted")
	require.Zero(t, tool.calls.Load())
}

func TestExecutor_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tool := &scriptedTool{errs: []error{driver.ErrBadConn, driver.ErrBadConn}}
	_, err := NewExecutor(fastConfig(3)).Execute(ctx, tool, nil)
	require.Error(t, err)
}

func TestToolConfig_Defaults(t *testing.T) {
	t.Parallel()

	var cfg ToolConfig
	require.Equal(t, 30*time.Second, cfg.timeout())
	require.Equal(t, 3, cfg.retries())
	require.Equal(t, DefaultToolConfig().timeout(), cfg.timeout())
}

func TestToolResult_Text(t *testing.T) {
	t.Parallel()

	require.Equal(t, "rows", SuccessResult("rows").Text())
	require.Equal(t, "Error: no such table: Foo", FailureResultf("no such table: %s", "Foo").Text())

	raw, err := json.Marshal(FailureResultf("bad"))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":false,"error":"bad"}`, string(raw))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(&scriptedTool{}))
	require.Error(t, r.Register(&scriptedTool{}))
	require.True(t, r.Has("scripted"))
	require.False(t, r.Has("missing"))
	require.Equal(t, []string{"scripted"}, r.Names())

	_, ok := r.Get("scripted")
	require.True(t, ok)
	require.Contains(t, r.Description(), "Tool: scripted")
	require.Contains(t, r.Description(), "(none)")
}
