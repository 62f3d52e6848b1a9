// Package binance fetches the pinned trading pair's 24h ticker from the
// Binance public REST API, the primary quote venue.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coinboard/internal/market"
)

// Client calls the Binance spot API. It needs no credentials: the 24h ticker
// endpoint is public.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client against baseURL (e.g. https://api.binance.com).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// tickerResponse is the subset of /api/v3/ticker/24hr we consume. Binance
// encodes numeric fields as strings.
type tickerResponse struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Ticker24h fetches the 24-hour ticker for a pair symbol such as "VANRYUSDT"
// and normalizes it into an AssetQuote with SourceID primary. A network
// error, non-2xx status, or missing lastPrice yields SourceUnavailableError.
func (c *Client) Ticker24h(ctx context.Context, symbol string) (market.AssetQuote, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return market.AssetQuote{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.AssetQuote{}, &market.SourceUnavailableError{Source: "binance", Asset: symbol, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return market.AssetQuote{}, &market.SourceUnavailableError{
			Source: "binance", Asset: symbol,
			Err: fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var tick tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&tick); err != nil {
		return market.AssetQuote{}, &market.SourceUnavailableError{Source: "binance", Asset: symbol, Err: err}
	}
	if tick.LastPrice == "" {
		return market.AssetQuote{}, &market.SourceUnavailableError{
			Source: "binance", Asset: symbol,
			Err: fmt.Errorf("payload missing lastPrice"),
		}
	}

	price, err := strconv.ParseFloat(tick.LastPrice, 64)
	if err != nil {
		return market.AssetQuote{}, &market.SourceUnavailableError{
			Source: "binance", Asset: symbol,
			Err: fmt.Errorf("parsing lastPrice %q: %w", tick.LastPrice, err),
		}
	}

	quote := market.AssetQuote{
		SymbolPair: symbol,
		Price:      price,
		SourceID:   market.SourcePrimary,
	}
	if v, err := strconv.ParseFloat(tick.PriceChangePercent, 64); err == nil {
		quote.Change24Pct = market.Float64(v)
	}
	if v, err := strconv.ParseFloat(tick.QuoteVolume, 64); err == nil {
		quote.Volume24 = market.Float64(v)
	}

	return quote, nil
}
