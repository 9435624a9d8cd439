package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.render.com/v1"

// APIError is returned for any non-2xx response from the Render API.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("render api: %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client is a bearer-authenticated client for the Render REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

// Config configures a Client. APIKey is required.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("render api key is required")
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 10 * time.Second}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		Timeout:   base.Timeout,
	}

	return &Client{
		baseURL: normalizeBaseURL(cfg.BaseURL),
		client:  httpClient,
	}, nil
}

// GetEvent fetches the full event record by id.
func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	if id == "" {
		return nil, errors.New("render get event requires an id")
	}
	endpoint := fmt.Sprintf("%s/events/%s", c.baseURL, url.PathEscape(id))
	var out Event
	if err := c.doJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetService fetches the service record by id.
func (c *Client) GetService(ctx context.Context, id string) (*Service, error) {
	if id == "" {
		return nil, errors.New("render get service requires an id")
	}
	endpoint := fmt.Sprintf("%s/services/%s", c.baseURL, url.PathEscape(id))
	var out Service
	if err := c.doJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDeploy fetches a single deploy of a service.
func (c *Client) GetDeploy(ctx context.Context, serviceID, deployID string) (*Deploy, error) {
	if serviceID == "" || deployID == "" {
		return nil, errors.New("render get deploy requires service and deploy ids")
	}
	endpoint := fmt.Sprintf("%s/services/%s/deploys/%s", c.baseURL, url.PathEscape(serviceID), url.PathEscape(deployID))
	var out Deploy
	if err := c.doJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func normalizeBaseURL(base string) string {
	if base == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(base, "/")
}
