// Package httpx provides the resilient HTTP caller shared by the allele
// lookup and scoring oracle clients: one place for timeout, bounded retry,
// backoff, and cooperative rate limiting policy.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	UserAgent   string
	// BackoffBase is the first retry delay; each retry doubles it.
	BackoffBase time.Duration
	// Limiter throttles outgoing calls. The external services here are shared
	// community resources; the default of two calls per second matches the
	// 0.5 s inter-batch delay the lookup service asks for.
	Limiter *rate.Limiter
}

// Client wraps net/http with bounded retries, exponential backoff with
// jitter, and a cooperative rate limiter. 429 and 5xx responses are retried;
// other statuses are returned to the caller.
type Client struct {
	hc          *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	userAgent   string
	backoffBase time.Duration
	logger      *zap.Logger
}

// New creates a Client with the given options, filling in defaults.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "qtl-eval/1.0"
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
	}
	return &Client{
		hc:          &http.Client{Timeout: opts.Timeout},
		limiter:     opts.Limiter,
		maxAttempts: opts.MaxAttempts,
		userAgent:   opts.UserAgent,
		backoffBase: opts.BackoffBase,
		logger:      zap.NewNop(),
	}
}

// SetLogger sets the logger for retry warnings.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// PostForm sends a form-encoded POST and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// PostJSON sends a JSON POST and decodes the JSON response into out.
// Extra headers (API keys) are applied to every attempt.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, out any, extra http.Header) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	data, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, vs := range extra {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}
		return req, nil
	})
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// do runs a request with retry. newReq builds a fresh request per attempt so
// the body can be replayed.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxAttempts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			c.logger.Warn("retryable http status",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http %d from %s: %s", resp.StatusCode, req.URL.String(), truncate(body, 200))
		}
		return body, nil
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.maxAttempts, lastErr)
}

// backoff sleeps for an exponentially growing interval with jitter, honoring
// context cancellation.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	const max = 30 * time.Second

	d := time.Duration(float64(c.backoffBase) * math.Pow(2, float64(attempt)))
	if d > max {
		d = max
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
