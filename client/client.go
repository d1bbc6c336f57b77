// Package client is a small Go client for the gateway API. It holds the
// session token pair and transparently refreshes it when a request comes
// back unauthorized, coordinating concurrent refreshes so only one refresh
// call is ever in flight.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

var (
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrSessionExpired = errors.New("session expired")
)

// Client is a gateway API client with automatic session refresh
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	refreshing   bool
	waiters      []chan error
}

// New creates a client for the gateway at baseURL
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTokens installs a token pair, e.g. after an explicit login.
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

// Tokens returns the current token pair
func (c *Client) Tokens() (accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

// Do sends an authenticated request. On a 401 it refreshes the session and
// retries the request exactly once; a second 401 is returned to the caller.
// The body is buffered so the retry can replay it.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, body, c.currentAccessToken())
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Unauthorized: refresh the session and retry once.
	resp.Body.Close()

	if err := c.refreshSession(ctx); err != nil {
		return nil, err
	}

	return c.send(ctx, method, path, body, c.currentAccessToken())
}

func (c *Client) currentAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, accessToken string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.httpClient.Do(req)
}

// refreshSession performs a single-flight token refresh. The first caller
// does the refresh; everyone else queues and receives the same outcome.
func (c *Client) refreshSession(ctx context.Context) error {
	c.mu.Lock()

	if c.refreshing {
		// A refresh is already in flight, wait for its result.
		wait := make(chan error, 1)
		c.waiters = append(c.waiters, wait)
		c.mu.Unlock()

		select {
		case err := <-wait:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.refreshToken == "" {
		c.mu.Unlock()
		return ErrNoRefreshToken
	}

	c.refreshing = true
	refreshToken := c.refreshToken
	c.mu.Unlock()

	err := c.doRefresh(ctx, refreshToken)

	c.mu.Lock()
	c.refreshing = false
	if err != nil {
		// The session is gone; holding stale tokens would just keep
		// producing 401s.
		c.accessToken = ""
		c.refreshToken = ""
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, wait := range waiters {
		wait <- err
	}

	return err
}

// Login authenticates against the gateway and installs the issued pair.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, http.MethodPost, "/v1/auth/login", payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.SetTokens(result.Data.AccessToken, result.Data.RefreshToken)
	return nil
}

// Logout tells the gateway to revoke the session and drops local tokens.
// Revocation is best effort; local tokens are cleared regardless.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/v1/auth/logout", nil, c.currentAccessToken())
	if err == nil {
		resp.Body.Close()
	}

	c.SetTokens("", "")
	return err
}

func (c *Client) doRefresh(ctx context.Context, refreshToken string) error {
	payload, err := json.Marshal(map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: refresh returned status %d", ErrSessionExpired, resp.StatusCode)
	}

	var result struct {
		Data struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if result.Data.AccessToken == "" || result.Data.RefreshToken == "" {
		return fmt.Errorf("%w: refresh response missing tokens", ErrSessionExpired)
	}

	c.mu.Lock()
	c.accessToken = result.Data.AccessToken
	c.refreshToken = result.Data.RefreshToken
	c.mu.Unlock()

	return nil
}
