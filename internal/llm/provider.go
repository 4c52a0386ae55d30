// Package llm talks to language-model providers and turns course context plus a
// question into an answer.
package llm

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs one chat completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Message is one chat message; Role is "user" or "assistant"
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is the provider-neutral input
type CompletionRequest struct {
	// System carries the course context and answering rules
	System string

	// Messages are the recent turns followed by the current question
	Messages []Message

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	Temperature float32
}

// CompletionResponse contains the model's answer
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "mistral", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 1000,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}
