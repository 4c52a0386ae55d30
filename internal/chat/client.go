package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
)

const (
	queryPath  = "/api/chat/query"
	healthPath = "/api/health"

	maxErrorBody = 512
)

// Client talks to a remote chat backend over HTTP. Requests are single-shot.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Backend = (*Client)(nil)

// NewClient creates a client for the backend at baseURL. A zero timeout leaves
// only the caller's context in charge.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger),
	}
}

// Query sends one request. Transport failures wrap ErrUnavailable; non-2xx answers are *BackendError.
func (c *Client) Query(ctx context.Context, req Request) (Response, error) {
	if req.RecentTurns == nil {
		req.RecentTurns = []model.Turn{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	c.logger.Debug("chat backend answered",
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return Response{}, &BackendError{StatusCode: httpResp.StatusCode, Body: errorDetail(respBody)}
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return Response{}, &BackendError{StatusCode: httpResp.StatusCode, Body: "undecodable response: " + err.Error()}
	}
	return resp, nil
}

// Health fetches the backend health document
func (c *Client) Health(ctx context.Context) (Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return Health{}, fmt.Errorf("create health request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Health{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return Health{}, &BackendError{StatusCode: httpResp.StatusCode, Body: errorDetail(b)}
	}

	var h Health
	if err := json.NewDecoder(httpResp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

// errorDetail prefers a {"detail": ...} or {"error": ...} message over the raw body
func errorDetail(body []byte) string {
	var doc struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		if doc.Detail != "" {
			return doc.Detail
		}
		if doc.Error != "" {
			return doc.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
