package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinboard/internal/market"
	"coinboard/internal/util"
)

func newTestClient(url string) *Client {
	// Generous limit so tests never throttle.
	return NewClient(url, time.Second, util.NewRateLimiter(100_000))
}

func TestMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" || q.Get("order") != "market_cap_desc" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("page") != "1" || q.Get("per_page") != "100" {
			t.Errorf("pagination query = page=%s per_page=%s", q.Get("page"), q.Get("per_page"))
		}
		if q.Get("price_change_percentage") != "24h" {
			t.Error("missing price_change_percentage=24h")
		}
		w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png","current_price":64000.5,"price_change_percentage_24h":1.2,"total_volume":3.5e10,"market_cap_rank":1},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":2600,"price_change_percentage_24h":-0.8,"total_volume":1.2e10,"market_cap_rank":2},
			{"id":"mystery","symbol":"mys","name":"Mystery","current_price":null,"price_change_percentage_24h":null,"total_volume":null,"market_cap_rank":null}
		]`))
	}))
	defer srv.Close()

	rows, err := newTestClient(srv.URL).Markets(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("Markets returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	btc := rows[0]
	if btc.ID != "bitcoin" || btc.Name != "Bitcoin" || btc.Symbol != "btc" {
		t.Errorf("first row = %+v", btc)
	}
	if btc.Price == nil || *btc.Price != 64000.5 {
		t.Errorf("btc.Price = %v, want 64000.5", btc.Price)
	}
	if btc.Rank == nil || *btc.Rank != 1 {
		t.Errorf("btc.Rank = %v, want 1", btc.Rank)
	}

	// Listing order preserved.
	if rows[1].ID != "ethereum" || rows[2].ID != "mystery" {
		t.Errorf("order not preserved: %s, %s", rows[1].ID, rows[2].ID)
	}

	// Null upstream fields stay nil.
	mys := rows[2]
	if mys.Price != nil || mys.Change24Pct != nil || mys.Volume24 != nil || mys.Rank != nil {
		t.Errorf("null fields not nil: %+v", mys)
	}
}

func TestMarketsNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Markets(context.Background(), 1, 100)
	if !market.IsSourceUnavailable(err) {
		t.Fatalf("error = %v, want SourceUnavailableError", err)
	}
}

func TestMarketByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "vanar-chain" {
			t.Errorf("ids = %q, want vanar-chain", got)
		}
		w.Write([]byte(`[{"id":"vanar-chain","symbol":"vanry","name":"Vanar Chain","image":"https://img/vanry.png","current_price":0.0812,"price_change_percentage_24h":3.1,"total_volume":9.9e6,"market_cap_rank":412}]`))
	}))
	defer srv.Close()

	row, err := newTestClient(srv.URL).MarketByID(context.Background(), "vanar-chain")
	if err != nil {
		t.Fatalf("MarketByID returned error: %v", err)
	}
	if row.ID != "vanar-chain" || row.Name != "Vanar Chain" {
		t.Errorf("row = %+v", row)
	}
	if row.Rank == nil || *row.Rank != 412 {
		t.Errorf("Rank = %v, want 412", row.Rank)
	}
}

func TestMarketByIDEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).MarketByID(context.Background(), "vanar-chain")
	if !market.IsSourceUnavailable(err) {
		t.Fatalf("error = %v, want SourceUnavailableError for empty listing", err)
	}
}

func TestMarketChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/vanar-chain/market_chart" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("days"); got != "7" {
			t.Errorf("days = %q, want 7", got)
		}
		w.Write([]byte(`{"prices":[[1700000000000,0.081],[1700003600000,0.082],[1700007200000,0.080]]}`))
	}))
	defer srv.Close()

	series, err := newTestClient(srv.URL).MarketChart(context.Background(), "vanar-chain", 7)
	if err != nil {
		t.Fatalf("MarketChart returned error: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("len(series) = %d, want 3", len(series))
	}
	if series[0].TimestampMS != 1700000000000 || series[0].Price != 0.081 {
		t.Errorf("series[0] = %+v", series[0])
	}
	// Monotonically non-decreasing timestamps, as delivered.
	for i := 1; i < len(series); i++ {
		if series[i].TimestampMS < series[i-1].TimestampMS {
			t.Errorf("timestamps not ascending at %d: %d < %d", i, series[i].TimestampMS, series[i-1].TimestampMS)
		}
	}
}

func TestMarketChartEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[]}`))
	}))
	defer srv.Close()

	series, err := newTestClient(srv.URL).MarketChart(context.Background(), "vanar-chain", 1)
	if err != nil {
		t.Fatalf("MarketChart returned error: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("len(series) = %d, want 0", len(series))
	}
}
