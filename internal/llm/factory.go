package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/coursepilot/internal/model"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name disables the model and returns nil, nil.
func NewProvider(config Config) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "openai":
		p, err = NewOpenAIProvider(config)

	case "mistral":
		p, err = NewMistralProvider(config)

	case "anthropic", "claude":
		p, err = NewAnthropicProvider(config)

	case "ollama":
		p, err = NewOllamaProvider(config)

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, mistral, anthropic, ollama)", config.Provider)
	}

	// A failed constructor must not leak a typed nil through the interface
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ConfigFromModel converts model.Config to llm.Config, sharing the outbound proxy settings
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    cfg.LLM.Timeout,
		MaxTokens:  cfg.LLM.MaxTokens,
		HTTPProxy:  cfg.Source.HTTPProxy,
		HTTPSProxy: cfg.Source.HTTPSProxy,
	}
}
