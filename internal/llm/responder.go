package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/logging"
)

// apology is returned when the model call fails; the raw error only goes to the log
const apology = "I apologize, but I encountered an error processing your question. Please try again in a moment."

// Responder answers chat requests with an LLM, or with keyword matching when no provider is configured
type Responder struct {
	provider  Provider
	maxTokens int
	now       func() time.Time
	logger    *zap.Logger
}

var _ chat.Backend = (*Responder)(nil)

// NewResponder creates a responder. provider may be nil.
func NewResponder(provider Provider, config Config, logger *zap.Logger) *Responder {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Responder{
		provider:  provider,
		maxTokens: maxTokens,
		now:       time.Now,
		logger:    logging.OrNop(logger),
	}
}

// Provider returns the configured provider name, or "keyword"
func (r *Responder) Provider() string {
	if r.provider == nil {
		return "keyword"
	}
	return r.provider.Name()
}

// Query implements chat.Backend. Model failures are answered with an apology, not an error.
func (r *Responder) Query(ctx context.Context, req chat.Request) (chat.Response, error) {
	now := r.now()
	if r.provider == nil {
		return chat.Response{
			Response:         KeywordAnswer(req, now),
			SuggestedActions: chat.DefaultActions(),
		}, nil
	}

	messages := HistoryMessages(req.RecentTurns, HistoryTurns)
	messages = append(messages, Message{Role: "user", Content: req.Query})
	temperature := Temperature(req.Query)

	start := time.Now()
	resp, err := r.provider.Complete(ctx, CompletionRequest{
		System:      BuildSystemPrompt(req.Context, now),
		Messages:    messages,
		MaxTokens:   r.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		r.logger.Warn("model call failed",
			zap.String("provider", r.provider.Name()),
			zap.String("session", req.SessionID),
			zap.Error(err))
		return chat.Response{Response: apology, SuggestedActions: chat.DefaultActions()}, nil
	}

	r.logger.Info("model answered",
		zap.String("provider", r.provider.Name()),
		zap.String("model", resp.Model),
		zap.Float32("temperature", temperature),
		zap.Int("tokens", resp.TokensUsed),
		zap.Duration("latency", time.Since(start)))

	return chat.Response{Response: resp.Text, SuggestedActions: chat.DefaultActions()}, nil
}
