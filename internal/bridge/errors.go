package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable means the request could not be delivered: nothing listens on
	// the target, or the listener stopped before answering.
	ErrUnreachable = errors.New("target unreachable")

	// ErrTimeout means the target accepted the request but did not answer in time
	ErrTimeout = errors.New("bridge timeout")

	errNoListener = errors.New("no listener registered")
	errStopped    = errors.New("listener stopped")
)

// UnreachableError is a delivery failure. It matches ErrUnreachable with errors.Is.
type UnreachableError struct {
	Target string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUnreachable, e.Target, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

func (e *UnreachableError) Is(target error) bool {
	return target == ErrUnreachable
}

// RemoteError carries a failure reported by the handler on the other side
type RemoteError struct {
	Target  string
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Target, e.Action, e.Message)
}
