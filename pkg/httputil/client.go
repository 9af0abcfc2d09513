package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/observability"
)

const (
	// DefaultTimeout bounds one request including the body read.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBytes caps response bodies.
	DefaultMaxBytes = 10 << 20
)

// Response is an upstream reply read fully into memory.
type Response struct {
	StatusCode  int
	Status      string // status text without the code, e.g. "Not Found"
	ContentType string
	Body        []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs GET requests with default headers.
// Cookies are never attached: the underlying http.Client has no jar.
type Client struct {
	http     *http.Client
	headers  map[string]string
	maxBytes int64
	attempts int
	backoff  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithRetry sets the attempts and initial backoff used by [Client.Get].
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// NewClient creates a Client with the given default headers.
// Pass nil for headers if no default headers are needed.
func NewClient(headers map[string]string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		headers:  headers,
		maxBytes: DefaultMaxBytes,
		attempts: 3,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs a single GET and returns whatever the upstream answered.
// Only transport failures and oversized bodies are errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidURL, err, "build request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, &RetryableError{Err: errors.Wrap(classifyTransport(err), err, "GET %s", redact(req.URL))}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, &RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "read body of %s", redact(req.URL))}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, errors.New(errors.ErrCodeUpstream, "response from %s exceeds %d bytes", host, c.maxBytes)
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	return &Response{
		StatusCode:  resp.StatusCode,
		Status:      statusText(resp),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Get fetches rawURL, retrying network failures and 5xx responses.
// Non-2xx statuses and empty bodies are returned as errors.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	var out *Response
	err := Retry(ctx, c.attempts, c.backoff, func() error {
		resp, err := c.Fetch(ctx, rawURL)
		if err != nil {
			return err
		}
		if err := checkStatus(resp.StatusCode, resp.Status); err != nil {
			return err
		}
		if len(resp.Body) == 0 {
			return errors.New(errors.ErrCodeUpstream, "empty body")
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out.Body, out.ContentType, nil
}

func checkStatus(code int, text string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "upstream: %s", text)
	case code >= 500:
		return &RetryableError{Err: errors.New(errors.ErrCodeUpstream, "upstream: status %d %s", code, text)}
	default:
		return errors.New(errors.ErrCodeUpstream, "upstream: status %d %s", code, text)
	}
}

func classifyTransport(err error) errors.Code {
	if ue, ok := err.(*url.Error); ok && ue.Timeout() {
		return errors.ErrCodeTimeout
	}
	return errors.ErrCodeNetwork
}

// statusText returns "Not Found" for "404 Not Found".
func statusText(resp *http.Response) string {
	if t := http.StatusText(resp.StatusCode); t != "" {
		if len(resp.Status) > 4 {
			return resp.Status[4:]
		}
		return t
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

// redact drops the query string, which may carry user names.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
