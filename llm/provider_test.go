// Security and conversion tests for LLM providers.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
)

// unauthorizedServer answers every request with a 401 that echoes a redacted key.
func unauthorizedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func assertNoKeyLeak(t *testing.T, err error, key string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error with invalid API key")
	}
	errStr := err.Error()
	if strings.Contains(errStr, key) {
		t.Errorf("error message leaked API key: %v", errStr)
	}
	if strings.Contains(errStr, "Authorization:") || strings.Contains(errStr, "x-api-key:") {
		t.Errorf("error exposed auth header: %v", errStr)
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Errorf("expected *ProviderError, got %T", err)
	}
}

// TestOpenAIErrorNoAPIKeyLeak verifies OpenAI errors don't contain API keys
func TestOpenAIErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	srv := unauthorizedServer(t)
	provider := NewOpenAIProvider(testKey, "gpt-4o", 100, 0, srv.URL+"/v1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{UserMessage("test")})
	assertNoKeyLeak(t, err, testKey)
}

// TestDeepSeekErrorNoAPIKeyLeak verifies DeepSeek errors don't contain API keys
func TestDeepSeekErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	srv := unauthorizedServer(t)
	provider := NewDeepSeekProvider(testKey, "deepseek-chat", 100, 0, srv.URL+"/v1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{UserMessage("test")})
	assertNoKeyLeak(t, err, testKey)
}

// TestAnthropicErrorNoAPIKeyLeak verifies Anthropic errors don't contain API keys
func TestAnthropicErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-ant-REDACTED"
	srv := unauthorizedServer(t)
	provider := NewAnthropicProvider(testKey, ModelAnthropicClaudeSonnet45, 100, 0,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{UserMessage("test")})
	assertNoKeyLeak(t, err, testKey)
}

func TestBuilderRequiresAPIKey(t *testing.T) {
	for _, p := range []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderGemini} {
		_, err := p.APIKey("  ")
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("%s: expected ErrMissingAPIKey, got %v", p, err)
		}
	}
}

func TestBuilderDefaults(t *testing.T) {
	provider, err := ProviderAnthropic.APIKey("sk-ant-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "anthropic" {
		t.Errorf("expected anthropic, got %q", provider.Name())
	}
	if provider.Model() != "claude-sonnet-4-5-20250929" {
		t.Errorf("unexpected default model %q", provider.Model())
	}
	ap := provider.(*AnthropicProvider)
	if ap.temperature != 0 {
		t.Errorf("expected temperature 0, got %v", ap.temperature)
	}
}

func TestParseProviderType(t *testing.T) {
	cases := map[string]ProviderType{
		"openai": ProviderOpenAI, "GPT": ProviderOpenAI,
		"claude": ProviderAnthropic, "deepseek": ProviderDeepSeek, "google": ProviderGemini,
	}
	for in, want := range cases {
		got, err := ParseProviderType(in)
		if err != nil || got != want {
			t.Errorf("ParseProviderType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseProviderType("llama"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func toolExchange() []ChatMessage {
	first := ToolCall{ID: "call_1", Name: "sql_db_list_tables", Arguments: json.RawMessage(`{}`)}
	second := ToolCall{ID: "call_2", Name: "sql_db_schema", Arguments: json.RawMessage(`{"table_names":"Track"}`)}
	return []ChatMessage{
		SystemMessage("system prompt"),
		UserMessage("How many tracks?"),
		AssistantToolCallMessage("", []ToolCall{first, second}),
		ToolResultMessage(first, "Track", false),
		ToolResultMessage(second, "Error: no such table", true),
		AssistantMessage("3503"),
	}
}

func TestConvertToAnthropicMessagesMergesToolResults(t *testing.T) {
	msgs, system := convertToAnthropicMessages(toolExchange())
	if system != "system prompt" {
		t.Errorf("expected system prompt extracted, got %q", system)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (user, assistant, merged results, assistant), got %d", len(msgs))
	}
	if len(msgs[1].Content) != 2 {
		t.Errorf("expected 2 tool_use blocks, got %d", len(msgs[1].Content))
	}
	results := msgs[2].Content
	if len(results) != 2 {
		t.Fatalf("expected 2 tool_result blocks in one turn, got %d", len(results))
	}
	if results[0].OfToolResult == nil || results[1].OfToolResult == nil {
		t.Fatal("expected tool_result blocks")
	}
	if !results[1].OfToolResult.IsError.Value {
		t.Error("expected second tool result flagged as error")
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := convertToOpenAIMessages(toolExchange())
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	if len(msgs[2].ToolCalls) != 2 || msgs[2].ToolCalls[1].Function.Arguments != `{"table_names":"Track"}` {
		t.Errorf("unexpected tool calls: %+v", msgs[2].ToolCalls)
	}
	if msgs[3].ToolCallID != "call_1" || msgs[3].Role != RoleTool {
		t.Errorf("unexpected tool result message: %+v", msgs[3])
	}
}

func TestConvertToGeminiSchemaDecodedJSON(t *testing.T) {
	var params map[string]any
	raw := `{"type":"object","properties":{"query":{"type":"string","description":"SQL"},"limit":{"type":"integer"}},"required":["query"]}`
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		t.Fatal(err)
	}

	schema := convertToGeminiSchema(params)
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Errorf("expected required [query], got %v", schema.Required)
	}
	if schema.Properties["query"].Description != "SQL" {
		t.Errorf("expected description carried over")
	}
	if schema.Properties["limit"].Type != "INTEGER" {
		t.Errorf("expected INTEGER, got %v", schema.Properties["limit"].Type)
	}
}

func TestConvertToGeminiMessagesToolResult(t *testing.T) {
	contents, _ := convertToGeminiMessages(toolExchange())
	var responses int
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.FunctionResponse != nil {
				responses++
				if p.FunctionResponse.Name == "" {
					t.Error("function response must carry the tool name")
				}
			}
		}
	}
	if responses != 2 {
		t.Errorf("expected 2 function responses, got %d", responses)
	}
}
