// Package fetch is the outbound HTTP client shared by the API and page strategies.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/coursepilot/internal/util"
	"github.com/ppiankov/coursepilot/internal/worker"
)

// ErrLoginRequired means the LMS redirected to its login page: the session cookie is missing or expired
var ErrLoginRequired = errors.New("login required")

const maxRedirects = 5

// HTTPError carries status and body for non-2xx responses
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 300))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Options configures a Fetcher
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	MaxBytes   int64
	Cookie     string // Forwarded verbatim as the Cookie header
	HTTPProxy  string
	HTTPSProxy string
	Limiter    *worker.Limiter // Optional per-host pacing
}

// Fetcher performs single-shot GET requests against the LMS
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	cookie     string
	limiter    *worker.Limiter
}

// New creates a Fetcher
func New(opts Options) *Fetcher {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 4_000_000
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy),
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		cookie:    opts.Cookie,
		limiter:   opts.Limiter,
	}
}

// Client exposes the underlying HTTP client (robots.txt checks reuse it)
func (f *Fetcher) Client() *http.Client {
	return f.httpClient
}

// Result is a fetched response body and its metadata
type Result struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
}

// Get fetches rawURL with the given Accept header.
// Non-2xx responses are *HTTPError; a redirect to the login page is ErrLoginRequired.
func (f *Fetcher) Get(ctx context.Context, rawURL, accept string) (*Result, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,fr;q=0.8")
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	if isLoginPage(resp.Request.URL.Path) {
		return nil, fmt.Errorf("%w: redirected to %s", ErrLoginRequired, finalURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	return &Result{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, nil
}

func isLoginPage(path string) bool {
	path = strings.ToLower(path)
	return strings.HasPrefix(path, "/d2l/login") || strings.HasPrefix(path, "/d2l/lp/auth/login")
}
