// Package client implements the HTTP client the CLI uses to talk to a
// running daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ccbridge-ai/ccbridge/internal/server"
	"github.com/ccbridge-ai/ccbridge/internal/switcher"
)

const requestTimeout = 10 * time.Second

// Client talks JSON over HTTP to a ccbridged instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at addr (host:port).
func New(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Status fetches daemon runtime state.
func (c *Client) Status(ctx context.Context) (server.StatusResponse, error) {
	var status server.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Providers fetches the provider list from the cc-switch store.
func (c *Client) Providers(ctx context.Context) ([]switcher.Provider, error) {
	var providers []switcher.Provider
	err := c.do(ctx, http.MethodGet, "/api/providers", nil, &providers)
	return providers, err
}

// ActiveProvider fetches the provider currently marked active.
func (c *Client) ActiveProvider(ctx context.Context) (*switcher.Provider, error) {
	var provider switcher.Provider
	if err := c.do(ctx, http.MethodGet, "/api/providers/active", nil, &provider); err != nil {
		return nil, err
	}
	return &provider, nil
}

// OpenSwitcher asks the daemon to launch the cc-switch application.
func (c *Client) OpenSwitcher(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/switcher/open", nil, nil)
}

// Reload asks the daemon to close active sessions so they restart with
// fresh configuration.
func (c *Client) Reload(ctx context.Context) (server.ReloadResponse, error) {
	var resp server.ReloadResponse
	err := c.do(ctx, http.MethodPost, "/api/reload", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s (is ccbridged running?): %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr server.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
