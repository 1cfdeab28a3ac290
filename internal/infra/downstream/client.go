package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxBodyBytes = 4 << 20

// Options tunes a Client. Zero values fall back to the defaults below.
type Options struct {
	// Timeout bounds each attempt, not the whole call.
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	APIKey          string
	HTTPClient      *http.Client
}

// StatusError is a non-2xx answer from a peer service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client posts JSON to a peer service, retrying transport errors and 5xx with
// exponential backoff. 4xx answers are returned immediately.
type Client struct {
	baseURL string
	opts    Options
}

func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), opts: opts}
}

// PostJSON sends in to path and decodes a 2xx body into out (when out is non-nil).
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	op := func() error {
		return c.attempt(ctx, http.MethodPost, path, body, out)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)
	return backoff.Retry(op, policy)
}

// Ping issues a single GET to path and expects a 2xx.
func (c *Client) Ping(ctx context.Context, path string) error {
	return c.attempt(ctx, http.MethodGet, path, nil, nil)
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out any) error {
	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(actx, method, c.baseURL+path, rd)
	if err != nil {
		return backoff.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 500:
		return &StatusError{Code: resp.StatusCode, Body: snippet(data)}
	case resp.StatusCode >= 400:
		return backoff.Permanent(&StatusError{Code: resp.StatusCode, Body: snippet(data)})
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
