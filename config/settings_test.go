package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	s := Default()

	if s.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", s.LLM.Provider)
	}
	if s.LLM.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("unexpected default model %q", s.LLM.Model)
	}
	if s.LLM.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", s.LLM.Temperature)
	}
	if s.Database.URI != DefaultDatabaseURI {
		t.Errorf("expected URI %q, got %q", DefaultDatabaseURI, s.Database.URI)
	}
	if s.Database.SampleRows != 3 {
		t.Errorf("expected 3 sample rows, got %d", s.Database.SampleRows)
	}
	if s.Agent.TopK != 5 {
		t.Errorf("expected top-k 5, got %d", s.Agent.TopK)
	}
	if s.Agent.MaxIterations != 15 {
		t.Errorf("expected 15 iterations, got %d", s.Agent.MaxIterations)
	}
	if s.Agent.ToolRetries != 3 {
		t.Errorf("expected 3 tool retries, got %d", s.Agent.ToolRetries)
	}
	if s.Agent.Timeout != 2*time.Minute {
		t.Errorf("expected 2m timeout, got %s", s.Agent.Timeout)
	}
}

func TestFromMapWithAlias(t *testing.T) {
	s, err := FromMap(map[string]string{"LLM_PROVIDER": "gpt", "OPENAI_API_KEY": "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai' (normalized from 'gpt'), got %q", s.LLM.Provider)
	}
	if s.LLM.APIKey != "sk-test" {
		t.Errorf("expected API key from OPENAI_API_KEY, got %q", s.LLM.APIKey)
	}
}

func TestFromMapUnknownProvider(t *testing.T) {
	_, err := FromMap(map[string]string{"LLM_PROVIDER": "unknown_provider"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "LLM_PROVIDER" {
		t.Errorf("expected key LLM_PROVIDER, got %q", cfgErr.Key)
	}
}

func TestFromMapInvalidValues(t *testing.T) {
	cases := map[string]string{
		"LLM_MAX_TOKENS":         "lots",
		"LLM_TEMPERATURE":        "warm",
		"AGENT_MAX_ITERATIONS":   "0",
		"AGENT_TOP_K":            "-1",
		"AGENT_TIMEOUT":          "soon",
		"DATABASE_MAX_ROWS":      "0",
		"DATABASE_QUERY_TIMEOUT": "-5s",
		"TOOL_MAX_RETRIES":       "-2",
		"TOOL_TIMEOUT":           "-5",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := FromMap(map[string]string{key: val})
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError for %s=%q, got %v", key, val, err)
			}
			if cfgErr.Key != key {
				t.Errorf("expected key %s, got %s", key, cfgErr.Key)
			}
		})
	}
}

func TestDurationAcceptsSeconds(t *testing.T) {
	s, err := FromMap(map[string]string{"AGENT_TIMEOUT": "90", "DATABASE_QUERY_TIMEOUT": "1m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Agent.Timeout != 90*time.Second {
		t.Errorf("expected 90s, got %s", s.Agent.Timeout)
	}
	if s.Database.QueryTimeout != time.Minute {
		t.Errorf("expected 1m, got %s", s.Database.QueryTimeout)
	}
}

func TestCredentialMissing(t *testing.T) {
	s := Default()

	_, err := s.LLM.Credential()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "ANTHROPIC_API_KEY" {
		t.Errorf("expected ANTHROPIC_API_KEY, got %q", cfgErr.Key)
	}
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential in chain")
	}
}

func TestWithProvider(t *testing.T) {
	values := map[string]string{"GEMINI_API_KEY": "g-key", "GEMINI_MODEL": "gemini-custom"}
	s, err := Default().WithProvider("google", func(k string) string { return values[k] })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LLM.Provider != "gemini" || s.LLM.Model != "gemini-custom" || s.LLM.APIKey != "g-key" {
		t.Errorf("unexpected LLM config: %+v", s.LLM)
	}
}

func TestLoadLayersEnvFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("DATABASE_URI", "")
	t.Setenv("AGENT_TOP_K", "7")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "ANTHROPIC_API_KEY=file-key\nAGENT_TOP_K=9\nDATABASE_URI=sqlite:///other.db\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	s, err := Load(envFile, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LLM.APIKey != "file-key" {
		t.Errorf("expected key from file, got %q", s.LLM.APIKey)
	}
	if s.Agent.TopK != 7 {
		t.Errorf("expected process env to win (7), got %d", s.Agent.TopK)
	}
	if s.Database.URI != "sqlite:///other.db" {
		t.Errorf("expected URI from file, got %q", s.Database.URI)
	}
	if v := os.Getenv("DATABASE_URI"); v == "sqlite:///other.db" {
		t.Errorf("Load must not mutate the process environment")
	}
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) != 4 {
		t.Errorf("expected 4 providers, got %d", len(providers))
	}
}

func TestEnvLookupFeedsWithProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("OPENAI_API_KEY=sk-file\nOPENAI_MODEL=gpt-4o-mini\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	lookup, err := EnvLookup(envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := Default().WithProvider("gpt", lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LLM.Provider != "openai" || s.LLM.Model != "gpt-4o-mini" || s.LLM.APIKey != "sk-file" {
		t.Errorf("unexpected LLM settings: %+v", s.LLM)
	}
}
