// Package metrics holds the Prometheus collectors shared by the agent,
// the tools and the MCP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"tool_name", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlagent_tool_call_duration_seconds",
			Help:    "Duration of tool calls",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"tool_name"},
	)

	ToolRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_tool_retries_total",
			Help: "Total number of tool call retries after transient failures",
		},
		[]string{"tool_name"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_llm_calls_total",
			Help: "Total number of model calls",
		},
		[]string{"provider", "status"},
	)

	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_llm_tokens_total",
			Help: "Total number of tokens reported by providers",
		},
		[]string{"provider", "kind"},
	)

	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_questions_total",
			Help: "Total number of questions answered, by outcome",
		},
		[]string{"outcome"},
	)
)
