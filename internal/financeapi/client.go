// Package financeapi is the REST client of the personal finance backend.
package financeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvloznov/finance-client/internal/logger"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second
	// DefaultPageSize is used by the fetch-all helpers.
	DefaultPageSize = 1000

	maxErrorBody = 1 << 20
)

// TokenSource returns the bearer token of the signed-in user, or "" when
// signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns t.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Client calls the finance backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	pageSize   int

	// OnUnauthorized runs when an authenticated request is rejected with
	// 401, typically to clear the stored token.
	OnUnauthorized func(ctx context.Context)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithPageSize sets the page size of the fetch-all helpers.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithUnauthorizedHandler sets OnUnauthorized.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.OnUnauthorized = fn }
}

// NewClient creates a client for the API rooted at baseURL, for example
// "http://localhost:8080/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		pageSize:   DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		req.body = bytes.NewReader(buf)
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends r and decodes a 2xx response into out. out may be nil, a
// *string for text responses, or any JSON target.
func (c *Client) do(ctx context.Context, r request, out any) error {
	log := logger.FromContext(ctx)

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("do: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	authPath := isAuthPath(r.path)
	if !authPath && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("do: reading token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Finance API request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := decodeAPIError(resp.StatusCode, body)
		if resp.StatusCode == http.StatusUnauthorized && !authPath {
			apiErr.Err = ErrUnauthorized
			if c.OnUnauthorized != nil {
				c.OnUnauthorized(ctx)
			}
		}
		return apiErr
	}

	switch v := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *string:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("do: reading %s %s response: %w", r.method, r.path, err)
		}
		*v = string(body)
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("do: decoding %s %s response: %w", r.method, r.path, err)
		}
		return nil
	}
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

// Authenticate exchanges credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/authenticate", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("Authenticate: %w", err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("Authenticate: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("Authenticate: empty token in response")
	}
	return resp.Token, nil
}
