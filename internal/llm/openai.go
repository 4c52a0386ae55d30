package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/coursepilot/internal/util"
)

const (
	mistralBaseURL      = "https://api.mistral.ai/v1"
	mistralDefaultModel = "mistral-small-latest"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible chat APIs.
// Mistral is served through the same client with its own base URL.
type OpenAIProvider struct {
	client       *openai.Client
	config       Config
	name         string
	defaultModel string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return newOpenAICompatible(config, "openai", openai.GPT4oMini), nil
}

// NewMistralProvider creates a provider for Mistral's OpenAI-compatible endpoint
func NewMistralProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Mistral API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = mistralBaseURL
	}
	return newOpenAICompatible(config, "mistral", mistralDefaultModel), nil
}

func newOpenAICompatible(config Config, name, defaultModel string) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	if config.HTTPProxy != "" || config.HTTPSProxy != "" {
		clientConfig.HTTPClient = &http.Client{
			Transport: &http.Transport{Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy)},
		}
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		config:       config,
		name:         name,
		defaultModel: defaultModel,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Listing models is the cheapest authenticated call
	_, err := p.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s API check failed: %v\n", p.name, err)
		return false
	}
	return true
}

// Complete runs a chat completion
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req, p.defaultModel)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.config.timeout(30*time.Second))
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   p.config.maxTokens(req),
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", p.name)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
