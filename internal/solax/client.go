package solax

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const DefaultURL = "https://solar-panel-hpfk.onrender.com/api/solax/realtime"

// Client fetches realtime snapshots. Requests carry no timeout of their own;
// only the caller's context can abandon them.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:  url,
		http: &http.Client{},
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) URL() string {
	return c.url
}

// Realtime performs one GET against the endpoint and decodes the payload.
// A JSON null body decodes to a nil *Realtime without error.
func (c *Client) Realtime(ctx context.Context) (*Realtime, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "solax-flow/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("realtime request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("realtime bad status: %s", resp.Status)
	}

	var payload *Realtime
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("realtime decode: %w", err)
	}
	return payload, nil
}
