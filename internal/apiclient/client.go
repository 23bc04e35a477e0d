// Package apiclient performs single JSON requests against the expense REST API.
//
// Every call is one request: no retries, no client-side timeout. Bodies that
// do not decode to a JSON object are replaced with an empty object, so callers
// inspect Success and Message instead of handling decode errors. Transport
// failures are returned as errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"expensetracker/internal/log"
)

// DefaultBaseURL matches the reference backend's local address.
const DefaultBaseURL = "http://localhost:8080/api"

var emptyObject = json.RawMessage("{}")

// Client wraps an http.Client bound to a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.WithComponent(log.ComponentAPIClient)
		}
	}
}

// New creates a client for baseURL. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Timeout 0: requests last as long as the caller's context allows.
		http:   &http.Client{},
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestConfig struct {
	token   string
	body    any
	hasBody bool
}

// RequestOption configures a single request.
type RequestOption func(*requestConfig)

// WithToken sends an Authorization bearer header when token is non-empty.
func WithToken(token string) RequestOption {
	return func(rc *requestConfig) {
		rc.token = token
	}
}

// WithBody JSON-encodes v as the request body.
func WithBody(v any) RequestOption {
	return func(rc *requestConfig) {
		rc.body = v
		rc.hasBody = true
	}
}

// Do performs one request and returns the decoded response.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error) {
	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}

	var body io.Reader
	if rc.hasBody && rc.body != nil {
		buf, err := json.Marshal(rc.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if rc.token != "" {
		req.Header.Set("Authorization", "Bearer "+rc.token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldError, err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, readErr := io.ReadAll(res.Body)
	if readErr != nil {
		c.logger.DebugContext(ctx, "Reading response body failed", log.FieldError, readErr)
	}

	resp := &Response{StatusCode: res.StatusCode, Body: asObject(raw)}
	c.logger.DebugContext(ctx, "API request completed",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, res.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds(),
		log.FieldSuccess, resp.Success())
	return resp, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, append(opts, WithBody(body))...)
}

// Put issues a PUT request with body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, append(opts, WithBody(body))...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, opts...)
}

// asObject keeps raw only if it is a JSON object.
func asObject(raw []byte) json.RawMessage {
	var probe map[string]json.RawMessage
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, &probe) != nil || probe == nil {
		return emptyObject
	}
	return json.RawMessage(raw)
}
