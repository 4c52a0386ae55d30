// Package chat is the wire contract between the session manager and the chat backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

// ErrUnavailable means the request never got an answer from the backend
var ErrUnavailable = errors.New("chat backend unavailable")

// Request is one conversational turn sent to the backend
type Request struct {
	Query       string        `json:"query"`
	Context     term.Snapshot `json:"context"`
	SessionID   string        `json:"sessionId"`
	RecentTurns []model.Turn  `json:"recentTurns"`
}

// Action is a follow-up the UI may offer
type Action struct {
	Label string `json:"label"`
	Type  string `json:"type"`
	Query string `json:"query"`
}

// Response is the backend's single answer
type Response struct {
	Response         string   `json:"response"`
	SuggestedActions []Action `json:"suggestedActions,omitempty"`
}

// Health is the answer of the health endpoint
type Health struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Backend answers chat requests. Implementations: *Client (HTTP) and llm.Responder (in-process).
type Backend interface {
	Query(ctx context.Context, req Request) (Response, error)
}

// BackendError is a non-success HTTP answer from the backend
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat backend returned status %d: %s", e.StatusCode, e.Body)
}

// DefaultActions are offered after every answer
func DefaultActions() []Action {
	return []Action{
		{Label: "View All Courses", Type: "query", Query: "Show me all my courses"},
		{Label: "Check Grades", Type: "query", Query: "What are my grades?"},
		{Label: "Get Help", Type: "query", Query: "What can you do?"},
	}
}
