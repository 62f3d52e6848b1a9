// Package coinboard provides a Go SDK for the coinboard-server API.
package coinboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coinboard/internal/board"
	"coinboard/internal/httpapi"
	"coinboard/internal/market"
)

// Client is an HTTP client for the coinboard-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new coinboard API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BoardQuery selects and filters the board rows server-side.
type BoardQuery struct {
	Search string
	Change market.ChangeDirection
}

// Board retrieves the current board snapshot, filtered server-side.
func (c *Client) Board(ctx context.Context, q BoardQuery) ([]market.Row, board.Status, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Change != "" && q.Change != market.ChangeAll {
		params.Set("change", string(q.Change))
	}
	u := c.baseURL + "/api/board"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var resp httpapi.BoardResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, board.Status{}, err
	}
	return resp.Rows, resp.Status, nil
}

// Refresh asks the server to re-fetch both upstream sources. The refresh runs
// asynchronously; poll Board to observe the new snapshot.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/refresh", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("refresh: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// History retrieves the price series for an asset over a lookback window.
// Failures wrap market.ErrHistory so callers can classify them.
func (c *Client) History(ctx context.Context, assetID string, days int) (market.HistorySeries, error) {
	if !market.ValidLookback(days) {
		return nil, fmt.Errorf("%w: invalid lookback %d", market.ErrHistory, days)
	}
	u := fmt.Sprintf("%s/api/history/%s?days=%s", c.baseURL, url.PathEscape(assetID), strconv.Itoa(days))

	var resp httpapi.HistoryResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", market.ErrHistory, err)
	}
	return resp.Points, nil
}

// Health probes the server and reports the published row count.
func (c *Client) Health(ctx context.Context) (int, error) {
	var resp httpapi.HealthResponse
	if err := c.getJSON(ctx, c.baseURL+"/api/health", &resp); err != nil {
		return 0, err
	}
	return resp.Rows, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api: status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
