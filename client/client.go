// Package client provides a client library for connecting to a running
// gateway instance over its REST surface (package api), used by
// cmd/bridge's scenario and console subcommands.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client represents a connection to a running gateway.
type Client struct {
	// BaseURL is the gateway's REST base (e.g., "http://localhost:8011").
	BaseURL string

	// HTTPClient is the underlying HTTP client used for requests.
	HTTPClient *http.Client
}

// NewClient creates a new gateway client connected to serverURL.
//
// Example:
//
//	c := client.NewClient("http://localhost:8011")
//	sys, err := c.GetSystem()
func NewClient(serverURL string) *Client {
	return &Client{
		BaseURL: serverURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetSystem retrieves the gateway's system snapshot (GET /system).
func (c *Client) GetSystem() (map[string]any, error) {
	var out map[string]any
	return out, c.getJSON("/system", &out)
}

// DeviceState retrieves a device's live state (GET /devices/{id}/state).
func (c *Client) DeviceState(deviceID string) (map[string]any, error) {
	var out map[string]any
	return out, c.getJSON("/devices/"+deviceID+"/state", &out)
}

// DeviceAction invokes an action on a device (POST /devices/{id}/action).
func (c *Client) DeviceAction(deviceID, action string, params map[string]any) (map[string]any, error) {
	var out map[string]any
	body := map[string]any{"action": action, "params": params}
	return out, c.postJSON("/devices/"+deviceID+"/action", body, &out)
}

// ScenarioSwitch switches the active scenario (POST /scenario/switch).
func (c *Client) ScenarioSwitch(id string, graceful bool) (map[string]any, error) {
	var out map[string]any
	body := map[string]any{"id": id, "graceful": graceful}
	return out, c.postJSON("/scenario/switch", body, &out)
}

// ScenarioState retrieves the active scenario's computed state
// (GET /scenario/state). Returns (nil, nil) if no scenario is active.
func (c *Client) ScenarioState() (map[string]any, error) {
	var out map[string]any
	err := c.getJSON("/scenario/state", &out)
	if err, ok := err.(*StatusError); ok && err.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	return out, err
}

// ScenarioDefinitions lists every loaded scenario (GET /scenario/definition).
func (c *Client) ScenarioDefinitions() ([]map[string]any, error) {
	var out []map[string]any
	return out, c.getJSON("/scenario/definition", &out)
}

// Ping checks that the gateway is reachable and responding.
func (c *Client) Ping() error {
	_, err := c.GetSystem()
	return err
}

// StatusError wraps a non-2xx HTTP response from the gateway.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.HTTPClient.Get(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func (c *Client) postJSON(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := c.HTTPClient.Post(c.BaseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func decodeOrError(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
