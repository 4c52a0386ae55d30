package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests per host so a course fan-out
// does not burst the LMS with dozens of simultaneous calls
type Limiter struct {
	mu           sync.RWMutex
	hosts        map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing requestsPerSecond per host.
// A non-positive rate disables pacing.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		hosts:        make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until a request to rawURL's host may proceed
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(host).Wait(ctx)
}

// Allow reports whether a request may proceed right now, consuming a token if so
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.forHost(host).Allow()
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.hosts[host]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.hosts[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.hosts[host] = lim
	return lim
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return parsed.Host, nil
}
