// Package config provides application settings resolved from explicit sources.
//
// Settings are created via FromLookup or Load which handle:
// - Environment-style key parsing with validation
// - Default value application
// - Provider-specific configuration lookup
//
// Nothing in this package mutates the process environment. Load reads .env
// files with godotenv.Read and layers them under the real environment.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDatabaseURI points at the Chinook sample database in the working directory.
const DefaultDatabaseURI = "sqlite:///chinook.db"

// Settings holds all application configuration.
type Settings struct {
	LLM      LLMConfig
	Database DatabaseConfig
	Agent    AgentConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   uint32
	Temperature float64
}

// DatabaseConfig holds database connector configuration.
type DatabaseConfig struct {
	URI          string
	SampleRows   int
	MaxRows      int
	QueryTimeout time.Duration
}

// AgentConfig holds agent execution configuration.
type AgentConfig struct {
	MaxIterations int
	TopK          int
	Timeout       time.Duration
	ToolRetries   int
	ToolTimeout   time.Duration
}

// Lookup resolves a configuration key. An empty string means unset.
type Lookup func(key string) string

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// Default returns settings with every default applied and no credential.
func Default() Settings {
	s, _ := FromLookup(func(string) string { return "" })
	return s
}

// Load resolves settings from the process environment layered over the given
// .env files. Missing files are skipped; values already present in the
// environment win over file values.
func Load(envFiles ...string) (Settings, error) {
	lookup, err := EnvLookup(envFiles...)
	if err != nil {
		return Settings{}, err
	}
	return FromLookup(lookup)
}

// EnvLookup returns the lookup Load uses: the process environment first,
// then the .env files in order.
func EnvLookup(envFiles ...string) (Lookup, error) {
	fileValues := make(map[string]string)
	for _, path := range envFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, &ConfigurationError{Key: path, Err: err}
		}
		for k, v := range values {
			if _, seen := fileValues[k]; !seen {
				fileValues[k] = v
			}
		}
	}

	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return fileValues[key]
	}, nil
}

// FromMap resolves settings from a plain key/value map.
func FromMap(values map[string]string) (Settings, error) {
	return FromLookup(func(key string) string { return values[key] })
}

// FromLookup resolves settings using lookup for every key.
// Returns a *ConfigurationError if the provider is unknown or a value is invalid.
// A missing API key is not an error here; see LLMConfig.Credential.
func FromLookup(lookup Lookup) (Settings, error) {
	provider := normalizeProvider(lookup("LLM_PROVIDER"))
	if provider == "" {
		provider = "anthropic"
	}

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, &ConfigurationError{Key: "LLM_PROVIDER", Err: err}
	}

	maxTokens, err := getUint32(lookup, "LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getFloat64(lookup, "LLM_TEMPERATURE", 0)
	if err != nil {
		return Settings{}, err
	}

	sampleRows, err := getInt(lookup, "DATABASE_SAMPLE_ROWS", 3)
	if err != nil {
		return Settings{}, err
	}

	maxRows, err := getInt(lookup, "DATABASE_MAX_ROWS", 50)
	if err != nil {
		return Settings{}, err
	}

	queryTimeout, err := getDuration(lookup, "DATABASE_QUERY_TIMEOUT", 30*time.Second)
	if err != nil {
		return Settings{}, err
	}

	maxIterations, err := getInt(lookup, "AGENT_MAX_ITERATIONS", 15)
	if err != nil {
		return Settings{}, err
	}

	topK, err := getInt(lookup, "AGENT_TOP_K", 5)
	if err != nil {
		return Settings{}, err
	}

	timeout, err := getDuration(lookup, "AGENT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return Settings{}, err
	}

	toolRetries, err := getInt(lookup, "TOOL_MAX_RETRIES", 3)
	if err != nil {
		return Settings{}, err
	}

	toolTimeout, err := getDuration(lookup, "TOOL_TIMEOUT", 30*time.Second)
	if err != nil {
		return Settings{}, err
	}

	model := lookup(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	uri := lookup("DATABASE_URI")
	if uri == "" {
		uri = DefaultDatabaseURI
	}

	s := Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       model,
			APIKey:      lookup(info.apiKeyEnv),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Database: DatabaseConfig{
			URI:          uri,
			SampleRows:   sampleRows,
			MaxRows:      maxRows,
			QueryTimeout: queryTimeout,
		},
		Agent: AgentConfig{
			MaxIterations: maxIterations,
			TopK:          topK,
			Timeout:       timeout,
			ToolRetries:   toolRetries,
			ToolTimeout:   toolTimeout,
		},
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	switch {
	case s.LLM.Temperature < 0 || s.LLM.Temperature > 2:
		return &ConfigurationError{Key: "LLM_TEMPERATURE", Err: fmt.Errorf("must be between 0 and 2, got %v", s.LLM.Temperature)}
	case s.Database.SampleRows < 0:
		return &ConfigurationError{Key: "DATABASE_SAMPLE_ROWS", Err: fmt.Errorf("must not be negative, got %d", s.Database.SampleRows)}
	case s.Database.MaxRows <= 0:
		return &ConfigurationError{Key: "DATABASE_MAX_ROWS", Err: fmt.Errorf("must be positive, got %d", s.Database.MaxRows)}
	case s.Agent.MaxIterations <= 0:
		return &ConfigurationError{Key: "AGENT_MAX_ITERATIONS", Err: fmt.Errorf("must be positive, got %d", s.Agent.MaxIterations)}
	case s.Agent.TopK <= 0:
		return &ConfigurationError{Key: "AGENT_TOP_K", Err: fmt.Errorf("must be positive, got %d", s.Agent.TopK)}
	case s.Agent.ToolRetries < 0:
		return &ConfigurationError{Key: "TOOL_MAX_RETRIES", Err: fmt.Errorf("must not be negative, got %d", s.Agent.ToolRetries)}
	}
	return nil
}

// Credential returns the API key, or a *ConfigurationError naming the
// variable that should have supplied it.
func (c LLMConfig) Credential() (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	env, err := APIKeyEnv(c.Provider)
	if err != nil {
		return "", &ConfigurationError{Key: "LLM_PROVIDER", Err: err}
	}
	return "", &ConfigurationError{Key: env, Err: ErrMissingCredential}
}

// WithProvider returns a copy of s switched to provider, re-resolving the
// model and API key through lookup.
func (s Settings) WithProvider(provider string, lookup Lookup) (Settings, error) {
	provider = normalizeProvider(provider)
	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, &ConfigurationError{Key: "LLM_PROVIDER", Err: err}
	}
	s.LLM.Provider = provider
	s.LLM.Model = info.defaultModel
	if m := lookup(info.modelEnv); m != "" {
		s.LLM.Model = m
	}
	s.LLM.APIKey = lookup(info.apiKeyEnv)
	return s, nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyEnv returns the variable holding the API key for a provider.
func APIKeyEnv(provider string) (string, error) {
	info, err := getProviderInfo(normalizeProvider(provider))
	if err != nil {
		return "", err
	}
	return info.apiKeyEnv, nil
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) (string, error) {
	info, err := getProviderInfo(normalizeProvider(provider))
	if err != nil {
		return "", err
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Lookup helpers with proper error handling

func getInt(lookup Lookup, key string, defaultVal int) (int, error) {
	val := lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Err: fmt.Errorf("invalid value %q: %w", val, err)}
	}
	return i, nil
}

func getUint32(lookup Lookup, key string, defaultVal uint32) (uint32, error) {
	val := lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Err: fmt.Errorf("invalid value %q: %w", val, err)}
	}
	return uint32(i), nil
}

func getFloat64(lookup Lookup, key string, defaultVal float64) (float64, error) {
	val := lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Err: fmt.Errorf("invalid value %q: %w", val, err)}
	}
	return f, nil
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(lookup Lookup, key string, defaultVal time.Duration) (time.Duration, error) {
	val := lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	var d time.Duration
	if secs, err := strconv.Atoi(val); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(val); err != nil {
		return 0, &ConfigurationError{Key: key, Err: fmt.Errorf("invalid value %q: %w", val, err)}
	}
	if d < 0 {
		return 0, &ConfigurationError{Key: key, Err: fmt.Errorf("must not be negative, got %s", d)}
	}
	return d, nil
}
