package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/etlive/etlive/internal/registry"
	"github.com/etlive/etlive/telemetry"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; every node keeps at most one request in flight,
// so a couple of idle connections per host is plenty
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the raw result of an HTTP request made by [Client.Fetch].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed before
	// receiving a response.
	StatusCode int

	// Error contains any error that occurred during the request.
	Error error
}

// Client is an HTTP client wrapper for polling node data endpoints.
//
// Client uses per-request timeouts via context rather than a global timeout.
// It never retries: one call is one attempt.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new polling [Client] with a pooled transport.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Poll fetches and decodes the latest measurement of node.
//
// The whole exchange, including reading the body, is bounded by timeout.
// On failure the returned error is always a *[PollError].
func (c *Client) Poll(ctx context.Context, node registry.Node, timeout time.Duration) (*telemetry.Measurement, error) {
	resp := c.Fetch(ctx, node.Endpoint, node.Headers, timeout)
	if resp.Error != nil {
		return nil, classify(resp.Error)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &PollError{Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	m, err := telemetry.Decode(resp.Body)
	if err != nil {
		return nil, &PollError{Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return m, nil
}

// Fetch performs a GET request and returns a structured [Response].
//
// The timeout is applied via context cancellation. Fetch always returns a
// Response; errors are captured in the Error field.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Error: fmt.Errorf("failed to create request: %w", err),
		}
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Error: fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. The client remains usable afterward.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

// classify maps a transport error to a PollError kind.
func classify(err error) *PollError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &PollError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &PollError{Kind: KindTimeout, Err: err}
	}
	return &PollError{Kind: KindConnection, Err: err}
}
