// Package coingecko fetches market listings and price history from the
// CoinGecko public REST API, the secondary aggregator. It is the source for
// the full board listing, the pinned asset's metadata, the quote fallback,
// and the history chart.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"coinboard/internal/market"
	"coinboard/internal/util"
)

// Client calls the CoinGecko v3 API. All calls go through the shared rate
// limiter; the public tier rejects bursts well below its documented limit.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *util.RateLimiter
}

// NewClient creates a Client against baseURL (e.g.
// https://api.coingecko.com/api/v3) throttled by limiter.
func NewClient(baseURL string, timeout time.Duration, limiter *util.RateLimiter) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// marketEntry is the subset of a /coins/markets record we consume. Raw
// entries never leave this package; they are mapped to market.Row.
type marketEntry struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Image        string   `json:"image"`
	CurrentPrice *float64 `json:"current_price"`
	Change24Pct  *float64 `json:"price_change_percentage_24h"`
	TotalVolume  *float64 `json:"total_volume"`
	Rank         *int     `json:"market_cap_rank"`
}

// chartResponse is the subset of /coins/{id}/market_chart we consume.
// Samples are [timestamp_ms, price] pairs, pre-sorted ascending.
type chartResponse struct {
	Prices [][]float64 `json:"prices"`
}

func (e marketEntry) toRow() market.Row {
	return market.Row{
		ID:          e.ID,
		Name:        e.Name,
		Symbol:      e.Symbol,
		Image:       e.Image,
		Price:       e.CurrentPrice,
		Change24Pct: e.Change24Pct,
		Volume24:    e.TotalVolume,
		Pair:        "", // filled by the aggregator from the symbol
		Rank:        e.Rank,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &market.SourceUnavailableError{Source: "coingecko", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &market.SourceUnavailableError{
			Source: "coingecko",
			Err:    fmt.Errorf("GET %s: status %d", path, resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &market.SourceUnavailableError{Source: "coingecko", Err: err}
	}
	return nil
}

// Markets fetches one page of the ranked market listing, ordered by market
// cap descending, quoted in USD, with 24h change included. The page's order
// is preserved. Non-success responses yield SourceUnavailableError.
func (c *Client) Markets(ctx context.Context, page, perPage int) ([]market.Row, error) {
	q := url.Values{
		"vs_currency":             {"usd"},
		"order":                   {"market_cap_desc"},
		"per_page":                {fmt.Sprintf("%d", perPage)},
		"page":                    {fmt.Sprintf("%d", page)},
		"sparkline":               {"false"},
		"price_change_percentage": {"24h"},
	}

	var entries []marketEntry
	if err := c.get(ctx, "/coins/markets", q, &entries); err != nil {
		return nil, err
	}

	rows := make([]market.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.toRow())
	}
	return rows, nil
}

// MarketByID fetches the single-asset listing for one aggregator id. Used as
// the quote fallback and as the pinned row's metadata source. Returns
// SourceUnavailableError when the asset is absent from the response.
func (c *Client) MarketByID(ctx context.Context, id string) (market.Row, error) {
	q := url.Values{
		"vs_currency":             {"usd"},
		"ids":                     {id},
		"price_change_percentage": {"24h"},
	}

	var entries []marketEntry
	if err := c.get(ctx, "/coins/markets", q, &entries); err != nil {
		return market.Row{}, err
	}
	if len(entries) == 0 {
		return market.Row{}, &market.SourceUnavailableError{
			Source: "coingecko", Asset: id,
			Err: fmt.Errorf("asset not in listing"),
		}
	}
	return entries[0].toRow(), nil
}

// MarketChart fetches the (timestamp, price) history for an asset over the
// lookback window in days, quoted in USD. Samples map 1:1 to HistoryPoint;
// the upstream returns them sorted ascending and they are not re-sorted.
func (c *Client) MarketChart(ctx context.Context, id string, days int) (market.HistorySeries, error) {
	q := url.Values{
		"vs_currency": {"usd"},
		"days":        {fmt.Sprintf("%d", days)},
	}

	var chart chartResponse
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", q, &chart); err != nil {
		return nil, err
	}

	series := make(market.HistorySeries, 0, len(chart.Prices))
	for _, sample := range chart.Prices {
		if len(sample) < 2 {
			continue
		}
		series = append(series, market.HistoryPoint{
			TimestampMS: int64(sample[0]),
			Price:       sample[1],
		})
	}
	return series, nil
}
