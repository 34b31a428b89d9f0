package fetcher

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/umputun/compscout/pkg/domain"
)

// Limiter enforces a minimum delay between consecutive requests to the same
// host and a total request budget for one pipeline run. Requests over budget
// fail fast with domain.ErrBudgetExceeded instead of blocking.
type Limiter struct {
	delay   time.Duration
	mu      sync.Mutex
	budget  int
	initial int
	last    map[string]time.Time
}

// NewLimiter creates a limiter with the given per-host delay and request budget
func NewLimiter(delay time.Duration, budget int) *Limiter {
	return &Limiter{
		delay:   delay,
		budget:  budget,
		initial: budget,
		last:    make(map[string]time.Time),
	}
}

// Reset restores the request budget, called at the start of each run
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budget = l.initial
}

// Acquire reserves one request slot for the given URL, sleeping if the host
// was hit within the delay window. Returns domain.ErrBudgetExceeded once the
// per-run budget is spent, or the context error on cancellation.
func (l *Limiter) Acquire(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)

	l.mu.Lock()
	if l.budget <= 0 {
		l.mu.Unlock()
		return domain.ErrBudgetExceeded
	}
	l.budget--

	var wait time.Duration
	now := time.Now()
	if prev, ok := l.last[host]; ok {
		if elapsed := now.Sub(prev); elapsed < l.delay {
			wait = l.delay - elapsed
		}
	}
	// reserve the slot before sleeping so concurrent callers to the same
	// host queue up behind each other
	l.last[host] = now.Add(wait)
	l.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Remaining returns the unspent request budget
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.budget
}

// hostOf extracts the host part of a URL, falling back to the raw string
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
