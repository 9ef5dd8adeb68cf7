package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client talks to a running daemon's command channel. Commands are one-shot
// with no retry; if the daemon cannot be reached the operator is told so
// immediately.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(addr, port string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s", net.JoinHostPort(addr, port)),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// ChangeState forces machines into the named state and returns the
// per-machine outcomes.
func (c *Client) ChangeState(state string, machines []string) (map[string]string, error) {
	var resp StateResponse
	err := c.post("/v1/state", StateRequest{State: state, Machines: machines}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) Status() ([]StatusRow, error) {
	var resp StatusResponse
	if err := c.get("/v1/status", &resp); err != nil {
		return nil, err
	}
	return resp.Machines, nil
}

func (c *Client) Reload(manifest string) (string, error) {
	var resp MessageResponse
	err := c.post("/v1/reload", ReloadRequest{Manifest: manifest}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) Shutdown() (string, error) {
	var resp MessageResponse
	if err := c.post("/v1/shutdown", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("daemon cannot be reached: %v", err)
	}
	return decode(resp, out)
}

func (c *Client) post(path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("daemon cannot be reached: %v", err)
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read daemon response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode daemon response: %v", err)
	}
	return nil
}
