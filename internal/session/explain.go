package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/coursepilot/internal/bridge"
	"github.com/ppiankov/coursepilot/internal/chat"
)

// Explain turns a request failure into the text shown in place of an answer.
// Raw error strings never reach the turn log.
func Explain(err error) string {
	var backendErr *chat.BackendError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, bridge.ErrTimeout):
		return "The assistant took too long to answer. Please try again."
	case errors.Is(err, context.Canceled):
		return "The question was interrupted before an answer arrived."
	case errors.Is(err, chat.ErrUnavailable), errors.Is(err, bridge.ErrUnreachable):
		return "I couldn't reach the assistant service. Check that it is running (`coursepilot serve`) and try again."
	case errors.As(err, &backendErr):
		return fmt.Sprintf("The assistant service returned an error (status %d). Please try again in a moment.", backendErr.StatusCode)
	}
	return "Sorry, something went wrong while answering your question. Please try again."
}
