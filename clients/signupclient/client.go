// Package signupclient provides a client for the activities sign-up HTTP API.
//
// The API exposes three endpoints:
//
//   - GET  /activities                              - the activity catalog
//   - POST /activities/{name}/signup?email={email}     - add a participant
//   - POST /activities/{name}/deregister?email={email} - remove a participant
//
// Mutations answer {"message": "..."} on success and {"detail": "..."} on
// failure. A failure response is returned as an *APIError so callers can show
// the server's detail text.
//
// Example usage:
//
//	client, err := signupclient.New("http://localhost:8000")
//	if err != nil {
//	    return err
//	}
//	c, err := client.Activities(ctx)
//	msg, err := client.Signup(ctx, "Chess Club", "me@example.com")
package signupclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nomis52/signup/catalog"
)

const (
	// DefaultTimeout bounds a single HTTP exchange when no http.Client is supplied.
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries a per-request identifier for correlation with server logs.
	RequestIDHeader = "X-Request-ID"

	maxBodySize = 1 << 20
)

// Client talks to the activities API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the API rooted at baseURL.
// The base URL must be absolute and may include a path prefix.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must include scheme and host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Activities fetches the current activity catalog.
func (c *Client) Activities(ctx context.Context) (*catalog.Catalog, error) {
	u := c.endpoint([]string{"activities"}, "")

	resp, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: "reading activities", Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var cat catalog.Catalog
	if err := cat.UnmarshalJSON(body); err != nil {
		return nil, &DecodeError{Op: "decoding activities", Err: err}
	}
	return &cat, nil
}

// Signup registers email for the named activity and returns the server's confirmation message.
func (c *Client) Signup(ctx context.Context, activity, email string) (string, error) {
	return c.mutate(ctx, activity, "signup", email)
}

// Deregister removes email from the named activity and returns the server's confirmation message.
func (c *Client) Deregister(ctx context.Context, activity, email string) (string, error) {
	return c.mutate(ctx, activity, "deregister", email)
}

func (c *Client) mutate(ctx context.Context, activity, action, email string) (string, error) {
	u := c.endpoint([]string{"activities", activity, action}, "email="+encodeComponent(email))

	resp, err := c.do(ctx, http.MethodPost, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &TransportError{Op: "reading " + action + " response", Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		return "", newAPIError(resp.StatusCode, body)
	}

	var result MessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &DecodeError{Op: "decoding " + action + " response", Err: err}
	}
	return result.Message, nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			"method", method,
			"url", u.String(),
			"request_id", requestID,
			"error", err,
		)
		return nil, &TransportError{Op: method + " " + u.Path, Err: err}
	}

	c.logger.Debug("request completed",
		"method", method,
		"url", u.String(),
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

// endpoint builds an API URL from unescaped path segments and a pre-encoded query.
// Each segment is percent-encoded on its own so names containing '/' or '?'
// stay a single path segment.
func (c *Client) endpoint(segments []string, rawQuery string) *url.URL {
	u := *c.baseURL
	path := u.Path
	rawPath := u.EscapedPath()
	for _, s := range segments {
		path += "/" + s
		rawPath += "/" + encodeComponent(s)
	}
	u.Path = path
	u.RawPath = rawPath
	u.RawQuery = rawQuery
	return &u
}

// encodeComponent percent-encodes s for use as a single path segment or query value.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func isSuccess(status int) bool {
	return status/100 == 2
}
