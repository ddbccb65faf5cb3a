// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL

package llm

import (
	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Provider interface for DeepSeek.
type DeepSeekProvider struct {
	openAICompatible
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32, baseURL string) *DeepSeekProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = deepseekBaseURL
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &DeepSeekProvider{newOpenAICompatible("deepseek", cfg, model, maxTokens, temperature)}
}

// Verify DeepSeekProvider implements Provider
var _ Provider = (*DeepSeekProvider)(nil)
