// Package loadgen exercises a running KV server as a black-box HTTP client.
// It shares no state with the server core: retry, backoff, pacing and
// circuit breaking here are purely client-side policies.
package loadgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Ankit-Rajput1112/DECS-Project/ratelimit"
	"github.com/Ankit-Rajput1112/DECS-Project/retry"
)

// ErrCircuitOpen reports that the client suppressed the request because the
// server failed too many times in a row and the cooldown has not elapsed.
var ErrCircuitOpen = errors.New("loadgen: circuit open")

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("loadgen: server returned status %d", e.Code)
}

// Retryable reports whether an error is worth another attempt: transport
// errors and 429/5xx responses are, client errors like 404 are not.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Anything else is a transport-level failure.
	return true
}

// ClientConfig tunes one load-generation client.
type ClientConfig struct {
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// Retries is the number of retries after a failed attempt (so attempts
	// = Retries+1), with exponential backoff and jitter between them.
	Retries int

	// RPS paces this client's request rate. Zero means unpaced.
	RPS float64

	// BreakAfter opens the circuit after this many consecutive failed
	// operations. Zero disables circuit breaking.
	BreakAfter int

	// Cooldown is how long the circuit stays open.
	Cooldown time.Duration
}

// Client issues KV operations against a server. Safe for use by a single
// worker goroutine; each worker owns its own Client.
type Client struct {
	http    *http.Client
	baseURL string
	retry   retry.Config
	limiter *ratelimit.Limiter

	mu         sync.Mutex
	failures   int
	openUntil  time.Time
	breakAfter int
	cooldown   time.Duration
}

// NewClient creates a client for the server at baseURL (e.g.
// "http://127.0.0.1:8080").
func NewClient(baseURL string, cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retry: retry.Config{
			MaxAttempts: cfg.Retries + 1,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Jitter:      0.2,
			Retryable:   Retryable,
		},
		breakAfter: cfg.BreakAfter,
		cooldown:   cfg.Cooldown,
	}
	if cfg.RPS > 0 {
		c.limiter = ratelimit.NewLimiter(cfg.RPS, 1)
	}
	return c
}

// Get reads key. The returned duration is the latency of the final attempt.
func (c *Client) Get(ctx context.Context, key string) (time.Duration, error) {
	return c.do(ctx, http.MethodGet, key, nil)
}

// Put writes value under key.
func (c *Client) Put(ctx context.Context, key string, value []byte) (time.Duration, error) {
	return c.do(ctx, http.MethodPut, key, value)
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) (time.Duration, error) {
	return c.do(ctx, http.MethodDelete, key, nil)
}

func (c *Client) do(ctx context.Context, method, key string, body []byte) (time.Duration, error) {
	if !c.allow() {
		return 0, ErrCircuitOpen
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	var latency time.Duration
	_, err := retry.Do(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		start := time.Now()
		err := c.attempt(ctx, method, key, body)
		latency = time.Since(start)
		return struct{}{}, err
	})
	c.observe(err)
	return latency, err
}

func (c *Client) attempt(ctx context.Context, method, key string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// allow reports whether the circuit permits a request.
func (c *Client) allow() bool {
	if c.breakAfter <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !time.Now().Before(c.openUntil)
}

// observe feeds the operation outcome into the breaker state.
func (c *Client) observe(err error) {
	if c.breakAfter <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.failures = 0
		return
	}
	c.failures++
	if c.failures >= c.breakAfter {
		c.openUntil = time.Now().Add(c.cooldown)
		c.failures = 0
	}
}
