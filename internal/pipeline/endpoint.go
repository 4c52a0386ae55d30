package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/coursepilot/internal/bridge"
	"github.com/ppiankov/coursepilot/internal/model"
)

// Target is the bridge name of the extractor endpoint
const Target = "extractor"

// Bridge actions
const (
	ActionExtract = "extract"
	ActionSync    = "sync"
	ActionPing    = "ping"
)

// ExtractRequest asks for one kind
type ExtractRequest struct {
	Kind model.Kind `json:"kind"`
}

// SyncRequest asks for several kinds in one round trip; empty means all kinds
type SyncRequest struct {
	Kinds []model.Kind `json:"kinds,omitempty"`
}

// PingResponse answers ActionPing
type PingResponse struct {
	OK bool `json:"ok"`
}

// Listen registers the pipeline as the extractor endpoint on b
func (p *Pipeline) Listen(b *bridge.Bridge) (func(), error) {
	return b.Listen(Target, p.handle)
}

func (p *Pipeline) handle(ctx context.Context, action string, payload json.RawMessage) (any, error) {
	switch action {
	case ActionPing:
		return PingResponse{OK: true}, nil
	case ActionExtract:
		var req ExtractRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode extract request: %w", err)
		}
		kind, err := model.ParseKind(string(req.Kind))
		if err != nil {
			return nil, err
		}
		return p.Extract(ctx, kind)
	case ActionSync:
		var req SyncRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("decode sync request: %w", err)
			}
		}
		kinds := make([]model.Kind, 0, len(req.Kinds))
		for _, k := range req.Kinds {
			kind, err := model.ParseKind(string(k))
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, kind)
		}
		return p.Sync(ctx, kinds)
	}
	return nil, fmt.Errorf("unknown action %q", action)
}

// Client is the foreground side of the extractor endpoint
type Client struct {
	bridge *bridge.Bridge
}

// NewClient creates a client sending through b
func NewClient(b *bridge.Bridge) *Client {
	return &Client{bridge: b}
}

// Extract asks the extractor for a fresh batch of kind.
// A bridge.ErrUnreachable error means the extractor is not running.
func (c *Client) Extract(ctx context.Context, kind model.Kind) (model.ExtractionBatch, error) {
	var batch model.ExtractionBatch
	if err := c.bridge.Send(ctx, Target, ActionExtract, ExtractRequest{Kind: kind}, &batch); err != nil {
		return model.NewBatch(kind), err
	}
	return batch, nil
}

// Sync asks the extractor to extract kinds, courses first, and returns the
// batches in the order they were extracted
func (c *Client) Sync(ctx context.Context, kinds []model.Kind) ([]model.ExtractionBatch, error) {
	var batches []model.ExtractionBatch
	if err := c.bridge.Send(ctx, Target, ActionSync, SyncRequest{Kinds: kinds}, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// Ping checks that the extractor is listening
func (c *Client) Ping(ctx context.Context) error {
	var resp PingResponse
	if err := c.bridge.Send(ctx, Target, ActionPing, nil, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("extractor answered ping without ok")
	}
	return nil
}
