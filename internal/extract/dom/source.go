package dom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ppiankov/coursepilot/internal/fetch"
	"github.com/ppiankov/coursepilot/internal/util"
)

// ErrDisallowed means robots.txt forbids the page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// PageSource opens rendered LMS pages. It is the only thing the scraper knows about the host.
type PageSource interface {
	Open(ctx context.Context, url string) (Page, error)
}

// Page is one open page. HTML returns the markup as currently rendered;
// successive calls may return more content as client-side rendering progresses.
type Page interface {
	HTML(ctx context.Context) (string, error)
	Close() error
}

// HTTPPageSource reads pages with plain GET requests. Each HTML call refetches.
type HTTPPageSource struct {
	fetcher *fetch.Fetcher
	robots  *util.RobotsChecker // nil skips the robots check
}

// NewHTTPPageSource creates an HTTP page source; robots may be nil
func NewHTTPPageSource(fetcher *fetch.Fetcher, robots *util.RobotsChecker) *HTTPPageSource {
	return &HTTPPageSource{fetcher: fetcher, robots: robots}
}

// Open implements PageSource
func (s *HTTPPageSource) Open(ctx context.Context, url string) (Page, error) {
	if s.robots != nil && !s.robots.Allowed(ctx, url) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowed, url)
	}
	return &httpPage{fetcher: s.fetcher, url: url}, nil
}

type httpPage struct {
	fetcher *fetch.Fetcher
	url     string
}

func (p *httpPage) HTML(ctx context.Context) (string, error) {
	res, err := p.fetcher.Get(ctx, p.url, "text/html,application/xhtml+xml")
	if err != nil {
		return "", err
	}
	return string(res.Body), nil
}

func (p *httpPage) Close() error { return nil }

// RodPageSource reads pages from a Chrome instance over the DevTools protocol.
// Pointing it at the user's own browser reuses the logged-in LMS session.
type RodPageSource struct {
	debuggerURL string
	navTimeout  time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodPageSource creates a source connected lazily to debuggerURL.
// An empty URL launches a headless Chrome.
func NewRodPageSource(debuggerURL string, navTimeout time.Duration) *RodPageSource {
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &RodPageSource{debuggerURL: debuggerURL, navTimeout: navTimeout}
}

func (s *RodPageSource) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	controlURL := s.debuggerURL
	if controlURL == "" {
		u, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser
	return browser, nil
}

// Open implements PageSource. Navigation is started but not awaited:
// readiness is decided by the scraper's retry loop.
func (s *RodPageSource) Open(ctx context.Context, url string) (Page, error) {
	browser, err := s.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &rodPage{page: page, timeout: s.navTimeout}, nil
}

// Close shuts down a browser we launched. A user's browser reached via
// debugger URL is left running.
func (s *RodPageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	browser := s.browser
	s.browser = nil
	if s.debuggerURL != "" {
		return nil
	}
	return browser.Close()
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).Timeout(p.timeout).HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
