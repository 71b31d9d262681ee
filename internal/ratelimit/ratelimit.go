// Package ratelimit throttles requests per client with a fixed window.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultWindow is the length of one counting window.
const DefaultWindow = 60 * time.Second

type bucket struct {
	count int
	reset time.Time
}

// Limiter allows at most limit requests per key in each window.
// A limit of zero or less rejects every request.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type Option func(*Limiter)

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithWindow overrides DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

func New(limit int, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  DefaultWindow,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Check records one request for key. When the request is over the limit it
// returns the whole seconds until the window resets and limited=true; the
// bucket is not incremented on rejection.
func (l *Limiter) Check(key string) (retryAfter int, limited bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.After(b.reset) {
		if l.limit <= 0 {
			l.buckets[key] = &bucket{count: 0, reset: now.Add(l.window)}
			return retrySeconds(l.window), true
		}
		l.buckets[key] = &bucket{count: 1, reset: now.Add(l.window)}
		return 0, false
	}

	if b.count >= l.limit {
		return retrySeconds(b.reset.Sub(now)), true
	}
	b.count++
	return 0, false
}

// Reset forgets every bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

// Limit returns the configured requests per window.
func (l *Limiter) Limit() int { return l.limit }

func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	return max(1, secs)
}

// ClientKey extracts the client IP from the request for rate limiting.
// The port is stripped so every connection from one host shares a bucket.
func ClientKey(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
