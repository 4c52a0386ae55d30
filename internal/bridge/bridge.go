// Package bridge is the request/response channel between the foreground
// (session manager, CLI) and the extractor endpoint.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/logging"
)

// Handler answers one action. The returned value is JSON-encoded for the caller.
type Handler func(ctx context.Context, action string, payload json.RawMessage) (any, error)

type request struct {
	ctx     context.Context
	action  string
	payload json.RawMessage
	reply   chan reply
}

type reply struct {
	data json.RawMessage
	err  error
}

type endpoint struct {
	target   string
	handler  Handler
	requests chan request
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

// Bridge routes requests to listeners by target name.
// Each listener serves its requests one at a time in arrival order.
type Bridge struct {
	mu        sync.RWMutex
	endpoints map[string]*endpoint
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a bridge. timeout applies to calls whose context has no deadline; 0 disables it.
func New(timeout time.Duration, logger *zap.Logger) *Bridge {
	return &Bridge{
		endpoints: make(map[string]*endpoint),
		timeout:   timeout,
		logger:    logging.OrNop(logger),
	}
}

// Listen registers handler for target and starts serving.
// The returned stop function unregisters it and waits for the serving goroutine;
// it must not be called from inside the handler.
func (b *Bridge) Listen(target string, handler Handler) (func(), error) {
	ep := &endpoint{
		target:   target,
		handler:  handler,
		requests: make(chan request),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	b.mu.Lock()
	if _, exists := b.endpoints[target]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("listener already registered for %q", target)
	}
	b.endpoints[target] = ep
	b.mu.Unlock()

	go ep.serve(b.logger)

	stop := func() {
		ep.stopOnce.Do(func() {
			b.mu.Lock()
			if b.endpoints[target] == ep {
				delete(b.endpoints, target)
			}
			b.mu.Unlock()
			close(ep.done)
		})
		<-ep.exited
	}
	return stop, nil
}

// Send delivers action to target and decodes the answer into out (nil discards it).
// Delivery failures are *UnreachableError, handler failures are *RemoteError.
// An empty answer is not an error.
func (b *Bridge) Send(ctx context.Context, target, action string, payload, out any) error {
	b.mu.RLock()
	ep, ok := b.endpoints[target]
	b.mu.RUnlock()
	if !ok {
		return &UnreachableError{Target: target, Err: errNoListener}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", action, err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	req := request{ctx: ctx, action: action, payload: raw, reply: make(chan reply, 1)}
	select {
	case ep.requests <- req:
	case <-ep.done:
		return &UnreachableError{Target: target, Err: errStopped}
	case <-ctx.Done():
		return contextError(ctx, target, action)
	}

	var resp reply
	select {
	case resp = <-req.reply:
	case <-ep.done:
		return &UnreachableError{Target: target, Err: errStopped}
	case <-ctx.Done():
		return contextError(ctx, target, action)
	}

	if resp.err != nil {
		if ctx.Err() != nil {
			return contextError(ctx, target, action)
		}
		return &RemoteError{Target: target, Action: action, Message: resp.err.Error()}
	}
	if out == nil || len(resp.data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.data, out); err != nil {
		return fmt.Errorf("decode %s/%s answer: %w", target, action, err)
	}
	return nil
}

func contextError(ctx context.Context, target, action string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s/%s", ErrTimeout, target, action)
	}
	return ctx.Err()
}

func (ep *endpoint) serve(logger *zap.Logger) {
	defer close(ep.exited)
	for {
		select {
		case req := <-ep.requests:
			req.reply <- ep.handle(req, logger)
		case <-ep.done:
			return
		}
	}
}

func (ep *endpoint) handle(req request, logger *zap.Logger) (r reply) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("bridge handler panicked",
				zap.String("target", ep.target), zap.String("action", req.action), zap.Any("panic", p))
			r = reply{err: fmt.Errorf("handler panic: %v", p)}
		}
	}()

	value, err := ep.handler(req.ctx, req.action, req.payload)
	if err != nil {
		return reply{err: err}
	}
	if value == nil {
		return reply{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return reply{err: fmt.Errorf("encode answer: %w", err)}
	}
	return reply{data: data}
}
