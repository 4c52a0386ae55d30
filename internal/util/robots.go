package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsChecker answers whether a page on the LMS host may be scraped.
// robots.txt is fetched once per host and cached for the process lifetime.
type RobotsChecker struct {
	mu         sync.RWMutex
	hosts      map[string]*robotstxt.RobotsData
	httpClient *http.Client
	agent      string
}

// NewRobotsChecker creates a checker using client for robots.txt fetches
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsChecker{
		hosts:      make(map[string]*robotstxt.RobotsData),
		httpClient: client,
		agent:      ProductToken(userAgent),
	}
}

// Allowed reports whether rawURL may be fetched. An unreachable or broken
// robots.txt allows everything; an unparseable URL allows nothing.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	data, err := r.load(ctx, parsed)
	if err != nil {
		return true
	}

	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return data.TestAgent(path, r.agent)
}

func (r *RobotsChecker) load(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.hosts[target.Host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, target.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.hosts[target.Host] = data
	r.mu.Unlock()
	return data, nil
}

// ProductToken returns the product part of a User-Agent ("coursepilot/0.3 (...)" -> "coursepilot")
func ProductToken(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}
