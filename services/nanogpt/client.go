package nanogpt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// BaseURL is the NanoGPT API base URL
	BaseURL = "https://nano-gpt.com/api/v1"
	// DefaultTimeout is the HTTP client timeout for regular API calls
	DefaultTimeout = 10 * time.Second
	// DefaultDialTimeout is the timeout for establishing TCP connections
	DefaultDialTimeout = 10 * time.Second
	// DefaultTLSTimeout is the timeout for TLS handshake
	DefaultTLSTimeout = 10 * time.Second
	// DefaultHeaderTimeout is the timeout for waiting for response headers
	DefaultHeaderTimeout = 30 * time.Second
	// DefaultIdleTimeout is the keep-alive probe interval
	DefaultIdleTimeout = 90 * time.Second
)

// Client talks to the NanoGPT API. Proxied completion requests go through
// the streaming client, which has connection-level timeouts only so long
// SSE responses are never cut off mid-stream.
type Client struct {
	baseURL         string
	httpClient      *http.Client // For regular API calls
	streamingClient *http.Client // For proxied requests (no client-level timeout)
}

// Config holds configuration for the NanoGPT client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new NanoGPT API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	// Do NOT set http.Client.Timeout for the streaming client: it would
	// kill long-running completions. Timeouts live on the transport and
	// cover connection establishment and response headers only.
	streamingTransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultIdleTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   DefaultTLSTimeout,
		ResponseHeaderTimeout: DefaultHeaderTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
	}

	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		streamingClient: &http.Client{
			Transport: streamingTransport,
		},
	}
}

// UpstreamError carries a non-2xx upstream response verbatim so handlers
// can relay status and body unchanged.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, string(e.Body))
}

// GetModels fetches the model catalogue. The endpoint needs no credential.
// The payload comes back as raw bytes: the upstream catalogue carries
// fields like pricing and context length that must reach clients intact,
// so it is never round-tripped through a typed struct.
func (c *Client) GetModels(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}

	return json.RawMessage(body), nil
}

// ProxyRequest forwards a request to the upstream API and returns the raw
// response for the caller to stream. The response is returned whatever its
// status: error responses are relayed, never retried or rewritten. The
// caller owns resp.Body.
func (c *Client) ProxyRequest(ctx context.Context, method, path, rawQuery string, body io.Reader, contentType, apiKey string) (*http.Response, error) {
	url := c.baseURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	// Bodies on GET and HEAD confuse some upstreams; drop them.
	if method == http.MethodGet || method == http.MethodHead {
		body = nil
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.streamingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	return resp, nil
}

// HealthCheck verifies the upstream API is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GetModels(ctx)
	return err
}
