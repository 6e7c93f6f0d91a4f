package llm

import "fmt"

type ProviderConfig struct {
	Provider         string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
}

// NewGenerator picks the client for cfg.Provider ("openai" or "anthropic").
func NewGenerator(cfg ProviderConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing API key for openai-compatible provider")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("missing API key for anthropic provider")
		}
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
