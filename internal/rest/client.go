package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	maxRetryAttempts = 3
	retryStep        = 400 * time.Millisecond
)

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "rest status error"
	}
	return fmt.Sprintf("rest %s %s status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	retryStep time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client with a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetryStep sets the linear delay unit between attempts.
func WithRetryStep(d time.Duration) Option {
	return func(c *Client) { c.retryStep = d }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/rest"
	}
	c := &Client{
		baseURL:   baseURL,
		token:     strings.TrimSpace(token),
		http:      &http.Client{Timeout: defaultTimeout},
		retryStep: retryStep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the REST root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchAll loads the JSON array at path.
func FetchAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	if err := c.getWithRetry(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOne loads the JSON object at path/id.
func FetchOne[T any](ctx context.Context, c *Client, path, id string) (T, error) {
	var out T
	err := c.getWithRetry(ctx, strings.TrimSuffix(path, "/")+"/"+url.PathEscape(id), &out)
	return out, err
}

func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		err := c.get(ctx, path, out)
		if err == nil {
			return nil
		}
		if isNonRetriable(err) {
			return err
		}
		lastErr = err
		if attempt == maxRetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rest GET %s canceled: %w", path, ctx.Err())
		case <-time.After(time.Duration(attempt) * c.retryStep):
		}
	}
	return fmt.Errorf("rest GET %s failed after %d attempts: %w", path, maxRetryAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{
			Method: http.MethodGet,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// isNonRetriable stops the retry loop on client errors and cancellation;
// server errors and transport failures are retried.
func isNonRetriable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code < http.StatusInternalServerError
	}
	return false
}
