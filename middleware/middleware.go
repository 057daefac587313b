// Package middleware provides caller-side decorators for completion
// backends: logging, timeouts, retry, caching, rate limiting, and run
// recording. Decorators compose at the backend boundary, so a chain keeps
// its single-call contract while the caller opts into extra behavior.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/klejdi94/weft/backend"
)

// Middleware wraps a backend with additional behavior.
type Middleware func(backend.Backend) backend.Backend

// Wrap applies all middlewares to b in order (first middleware is
// outermost).
func Wrap(b backend.Backend, mws ...Middleware) backend.Backend {
	for i := len(mws) - 1; i >= 0; i-- {
		b = mws[i](b)
	}
	return b
}

// Logging returns a middleware that logs each completion call at debug
// level and failures at warn level.
func Logging(log zerolog.Logger) Middleware {
	return func(next backend.Backend) backend.Backend {
		return &loggingBackend{next: next, log: log}
	}
}

type loggingBackend struct {
	next backend.Backend
	log  zerolog.Logger
}

func (l *loggingBackend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	start := time.Now()
	l.log.Debug().
		Str("model", req.Model).
		Int("prompt_len", len(req.Prompt)).
		Msg("completion dispatched")
	resp, err := l.next.Complete(ctx, req)
	if err != nil {
		l.log.Warn().
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("completion failed")
		return nil, err
	}
	l.log.Debug().
		Str("model", resp.Model).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("elapsed", time.Since(start)).
		Msg("completion ok")
	return resp, nil
}

// Timeout returns a middleware that bounds each completion call with a
// context deadline.
func Timeout(d time.Duration) Middleware {
	return func(next backend.Backend) backend.Backend {
		return backend.Func(func(ctx context.Context, req backend.Request) (*backend.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, req)
		})
	}
}

// BackoffFunc returns the delay before the next retry (attempt is 0-based).
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff returns delay = base * 2^attempt, capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := base * time.Duration(math.Pow(2, float64(attempt)))
		if d > max {
			return max
		}
		return d
	}
}

// Retry returns a middleware that retries completions failing with
// backend.ErrUnavailable up to maxRetries extra attempts. Bad responses
// are never retried, and the last error is returned unchanged.
func Retry(maxRetries int, backoff BackoffFunc) Middleware {
	if backoff == nil {
		backoff = ExponentialBackoff(500*time.Millisecond, 30*time.Second)
	}
	return func(next backend.Backend) backend.Backend {
		return backend.Func(func(ctx context.Context, req backend.Request) (*backend.Response, error) {
			var lastErr error
			for attempt := 0; ; attempt++ {
				resp, err := next.Complete(ctx, req)
				if err == nil {
					return resp, nil
				}
				lastErr = err
				if attempt >= maxRetries || !errors.Is(err, backend.ErrUnavailable) {
					break
				}
				select {
				case <-time.After(backoff(attempt)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, lastErr
		})
	}
}

// Metrics returns a middleware that counts requests, errors, and token
// usage, along with the counters it feeds.
func Metrics() (Middleware, *MetricsCounters) {
	m := &metricsBackend{}
	return func(next backend.Backend) backend.Backend {
		m.next = next
		return m
	}, &MetricsCounters{m: m}
}

// MetricsCounters provides read access to collected metrics.
type MetricsCounters struct {
	m *metricsBackend
}

func (c *MetricsCounters) Requests() uint64         { return c.m.requests.Load() }
func (c *MetricsCounters) Errors() uint64           { return c.m.errors.Load() }
func (c *MetricsCounters) PromptTokens() uint64     { return c.m.promptTok.Load() }
func (c *MetricsCounters) CompletionTokens() uint64 { return c.m.completeTok.Load() }

type metricsBackend struct {
	next        backend.Backend
	requests    atomic.Uint64
	errors      atomic.Uint64
	promptTok   atomic.Uint64
	completeTok atomic.Uint64
}

func (m *metricsBackend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	m.requests.Add(1)
	resp, err := m.next.Complete(ctx, req)
	if err != nil {
		m.errors.Add(1)
		return nil, err
	}
	m.promptTok.Add(uint64(resp.Usage.PromptTokens))
	m.completeTok.Add(uint64(resp.Usage.CompletionTokens))
	return resp, nil
}

// Cache stores encoded completion responses by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// CacheMiddleware returns a middleware that serves repeated prompts from
// cache. Only successful responses are stored, keyed by model and prompt.
func CacheMiddleware(cache Cache, ttl time.Duration) Middleware {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return func(next backend.Backend) backend.Backend {
		return &cacheBackend{next: next, cache: cache, ttl: ttl}
	}
}

type cacheBackend struct {
	next  backend.Backend
	cache Cache
	ttl   time.Duration
}

func (c *cacheBackend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	key := req.Model + "\x00" + req.Prompt
	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, key); ok {
			var resp backend.Response
			if err := json.Unmarshal(raw, &resp); err == nil {
				return &resp, nil
			}
		}
	}
	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			_ = c.cache.Set(ctx, key, raw, c.ttl)
		}
	}
	return resp, nil
}

// InMemoryCache is a simple in-process Cache for testing and single-node
// use.
type InMemoryCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	val     []byte
	expires time.Time
}

// NewInMemoryCache creates an empty in-process cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{store: make(map[string]cacheEntry)}
}

func (m *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.val, true
}

func (m *InMemoryCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.store[key] = cacheEntry{val: val, expires: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// RateLimit returns a middleware that allows at most limit requests per
// window (e.g. 100 per time.Minute).
func RateLimit(limit int, window time.Duration) Middleware {
	return func(next backend.Backend) backend.Backend {
		r := &rateLimitBackend{next: next, tokens: make(chan struct{}, limit)}
		for i := 0; i < limit; i++ {
			r.tokens <- struct{}{}
		}
		go func() {
			tick := window / time.Duration(limit)
			if tick < time.Millisecond {
				tick = time.Millisecond
			}
			for range time.Tick(tick) {
				select {
				case r.tokens <- struct{}{}:
				default:
				}
			}
		}()
		return r
	}
}

type rateLimitBackend struct {
	next   backend.Backend
	tokens chan struct{}
}

func (r *rateLimitBackend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	select {
	case <-r.tokens:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.next.Complete(ctx, req)
}

// ErrCircuitOpen is the cause carried by the unavailable error returned
// while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

const (
	cbClosed uint32 = iota
	cbOpen
	cbHalfOpen
)

// CircuitBreaker returns a middleware that fails fast once the failure
// rate exceeds threshold (e.g. 0.5). After timeout one request is let
// through (half-open); its success closes the circuit again. While open,
// calls fail with an error matching backend.ErrUnavailable.
func CircuitBreaker(threshold float64, timeout time.Duration) Middleware {
	return func(next backend.Backend) backend.Backend {
		return &circuitBreakerBackend{next: next, threshold: threshold, timeout: timeout}
	}
}

type circuitBreakerBackend struct {
	next      backend.Backend
	threshold float64
	timeout   time.Duration
	requests  atomic.Uint64
	failures  atomic.Uint64
	state     atomic.Uint32
	openUntil time.Time
	mu        sync.Mutex
}

func (c *circuitBreakerBackend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	if c.state.Load() == cbOpen {
		c.mu.Lock()
		if time.Now().Before(c.openUntil) {
			c.mu.Unlock()
			return nil, &backend.UnavailableError{Backend: "circuit-breaker", Err: ErrCircuitOpen}
		}
		c.state.Store(cbHalfOpen)
		c.mu.Unlock()
	}
	c.requests.Add(1)
	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		c.failures.Add(1)
		c.mu.Lock()
		if c.state.Load() == cbHalfOpen {
			c.state.Store(cbOpen)
			c.openUntil = time.Now().Add(c.timeout)
		} else if c.requests.Load() >= 10 {
			rate := float64(c.failures.Load()) / float64(c.requests.Load())
			if rate >= c.threshold {
				c.state.Store(cbOpen)
				c.openUntil = time.Now().Add(c.timeout)
			}
		}
		c.mu.Unlock()
		return nil, err
	}
	if c.state.Load() == cbHalfOpen {
		c.state.Store(cbClosed)
	}
	return resp, nil
}
