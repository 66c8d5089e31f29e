// Package directory wraps the public locality directory API that lists the
// states and, per state, the official municipality roster.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

type State struct {
	Code string `json:"sigla"`
	Name string `json:"nome"`
}

type Municipality struct {
	Code int    `json:"id"`
	Name string `json:"nome"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// States returns all states. The directory is rate-limited; callers cache the
// result for the duration of an import run.
func (c *Client) States(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.getJSON(ctx, c.baseURL+"/estados", &states); err != nil {
		return nil, err
	}
	return states, nil
}

// Municipalities returns the roster for one state code.
func (c *Client) Municipalities(ctx context.Context, stateCode string) ([]Municipality, error) {
	var ms []Municipality
	url := fmt.Sprintf("%s/estados/%s/municipios", c.baseURL, stateCode)
	if err := c.getJSON(ctx, url, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory returned status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory response decode: %w", err)
	}
	return nil
}
