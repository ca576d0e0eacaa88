// Package client is the Go SDK for the alertgraph daemon HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rmax-ai/alertgraph/pkg/catalog"
	"github.com/rmax-ai/alertgraph/pkg/graph"
	"github.com/rmax-ai/alertgraph/pkg/registry"
	"github.com/rmax-ai/alertgraph/pkg/store"
)

const (
	// DefaultEndpoint is the daemon's default listen address.
	DefaultEndpoint = "http://127.0.0.1:8090"

	defaultRetries = 2
)

// Status is the daemon health response.
type Status struct {
	Status string `json:"status"`
}

// AlertInput is the body of a new alert. Region may be empty to use the
// user's region.
type AlertInput struct {
	UserID      string `json:"user_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Region      string `json:"region,omitempty"`
}

// SearchResult is the response of an alert search.
type SearchResult struct {
	Query  string        `json:"query"`
	Value  string        `json:"value"`
	Count  int           `json:"count"`
	Alerts []graph.Match `json:"alerts"`
}

// APIError is returned for non-2xx responses. Code is the daemon's
// snake_case error code, e.g. "unknown_region".
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alertgraph: %s (status %d)", e.Code, e.StatusCode)
}

// Client is the alertgraph SDK client.
type Client struct {
	endpoint string
	http     *http.Client
	backoff  ReadBackoff
	retries  int
}

// NewClient creates a new client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff: DefaultReadBackoff(),
		retries: defaultRetries,
	}
}

// WithRetries sets how many times reads are retried after a network error
// or a 5xx response, using the given backoff.
func (c *Client) WithRetries(n int, b ReadBackoff) *Client {
	c.retries = n
	if b != nil {
		c.backoff = b
	}
	return c
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	err := c.get(ctx, "/v1/health", nil, &status)
	return status, err
}

// RegisterUser registers a user in a region.
func (c *Client) RegisterUser(ctx context.Context, name, region string) (store.User, error) {
	var user store.User
	body := map[string]string{"name": name, "region": region}
	err := c.post(ctx, "/v1/users", body, &user)
	return user, err
}

// CreateAlert files a new alert.
func (c *Client) CreateAlert(ctx context.Context, in AlertInput) (store.Alert, error) {
	var alert store.Alert
	err := c.post(ctx, "/v1/alerts", in, &alert)
	return alert, err
}

// SearchByCategory returns the active alerts of a category.
func (c *Client) SearchByCategory(ctx context.Context, category string) (SearchResult, error) {
	return c.search(ctx, "category", category)
}

// SearchByRegion returns the active alerts of a region.
func (c *Client) SearchByRegion(ctx context.Context, region string) (SearchResult, error) {
	return c.search(ctx, "region", region)
}

// SearchByUser returns the alerts filed by a user.
func (c *Client) SearchByUser(ctx context.Context, userID string) (SearchResult, error) {
	return c.search(ctx, "user_id", userID)
}

func (c *Client) search(ctx context.Context, key, value string) (SearchResult, error) {
	var res SearchResult
	err := c.get(ctx, "/v1/alerts", url.Values{key: {value}}, &res)
	return res, err
}

// RecentAlerts lists recently published alert ids, newest first.
func (c *Client) RecentAlerts(ctx context.Context, limit int) ([]string, error) {
	var res struct {
		AlertIDs []string `json:"alert_ids"`
	}
	err := c.get(ctx, "/v1/alerts/recent", limitQuery(limit), &res)
	return res.AlertIDs, err
}

// Stats fetches graph and alert counters.
func (c *Client) Stats(ctx context.Context) (registry.Stats, error) {
	var stats registry.Stats
	err := c.get(ctx, "/v1/stats", nil, &stats)
	return stats, err
}

// Catalog fetches the known categories and regions.
func (c *Client) Catalog(ctx context.Context) (catalog.Catalog, error) {
	var cat catalog.Catalog
	err := c.get(ctx, "/v1/catalog", nil, &cat)
	return cat, err
}

// GetEvents fetches recent events from the daemon.
func (c *Client) GetEvents(ctx context.Context, limit int) ([]store.Event, error) {
	var events []store.Event
	err := c.get(ctx, "/v1/events", limitQuery(limit), &events)
	return events, err
}

// Graph fetches the whole graph.
func (c *Client) Graph(ctx context.Context) (graph.Export, error) {
	var export graph.Export
	err := c.get(ctx, "/v1/graph", nil, &export)
	return export, err
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// get issues a GET and retries network errors and 5xx responses.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, c.backoff, attempt); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		lastErr = c.do(req, out)
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// post issues a POST once. Writes are never retried.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: fmt.Sprintf("unexpected_status_%d", resp.StatusCode)}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return apiErr
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Code = body.Error
	}
	return apiErr
}

// retryable reports whether a read failed on the network or with a 5xx.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode != http.StatusNotImplemented
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
