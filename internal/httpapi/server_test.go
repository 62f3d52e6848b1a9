package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"coinboard/internal/board"
	"coinboard/internal/market"
)

type fakeRefresher struct {
	model *board.Model
	snap  market.Snapshot
	err   error
	calls atomic.Int32
}

func (f *fakeRefresher) Refresh(ctx context.Context) (market.Snapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.model.Publish(f.snap)
	return f.snap, nil
}

type fakeHistory struct {
	series market.HistorySeries
	err    error
	calls  atomic.Int32
}

func (f *fakeHistory) MarketChart(ctx context.Context, id string, days int) (market.HistorySeries, error) {
	f.calls.Add(1)
	return f.series, f.err
}

func testSnapshot() market.Snapshot {
	return market.Snapshot{
		{ID: "vanar-chain", Name: "Vanar Chain", Symbol: "vanry", Pair: "VANRY/USDT", Change24Pct: market.Float64(2.5)},
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", Pair: "BTC/USDT", Change24Pct: market.Float64(-1.2)},
		{ID: "ethereum", Name: "Ethereum", Symbol: "eth", Pair: "ETH/USDT", Change24Pct: market.Float64(0.8)},
	}
}

func newTestServer(t *testing.T) (*BoardServer, *board.Model, *fakeRefresher, *fakeHistory) {
	t.Helper()
	model := board.NewModel()
	refresher := &fakeRefresher{model: model, snap: testSnapshot()}
	history := &fakeHistory{series: market.HistorySeries{{TimestampMS: 1000, Price: 0.08}}}
	srv := NewBoardServer(model, refresher, history, slog.New(slog.DiscardHandler))
	return srv, model, refresher, history
}

func TestBoardReturnsSnapshot(t *testing.T) {
	srv, model, _, _ := newTestServer(t)
	model.Publish(testSnapshot())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/board", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp BoardResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Rows) != 3 || resp.Total != 3 {
		t.Errorf("rows=%d total=%d, want 3/3", len(resp.Rows), resp.Total)
	}
	if resp.Status.Loading {
		t.Error("status loading after publish")
	}
}

func TestBoardAppliesFilterParams(t *testing.T) {
	srv, model, _, _ := newTestServer(t)
	model.Publish(testSnapshot())

	cases := []struct {
		query   string
		wantIDs []string
	}{
		{"search=van", []string{"vanar-chain"}},
		{"change=up", []string{"vanar-chain", "ethereum"}},
		{"change=down", []string{"bitcoin"}},
		{"change=bogus", []string{"vanar-chain", "bitcoin", "ethereum"}},
		{"search=e&change=up", []string{"ethereum"}},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/board?"+c.query, nil))

		var resp BoardResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: decoding: %v", c.query, err)
		}
		if len(resp.Rows) != len(c.wantIDs) {
			t.Errorf("%s: got %d rows, want %d", c.query, len(resp.Rows), len(c.wantIDs))
			continue
		}
		for i, id := range c.wantIDs {
			if resp.Rows[i].ID != id {
				t.Errorf("%s: rows[%d].ID = %q, want %q", c.query, i, resp.Rows[i].ID, id)
			}
		}
		if resp.Total != 3 {
			t.Errorf("%s: total = %d, want unfiltered 3", c.query, resp.Total)
		}
	}
}

func TestRefreshRunsInBackground(t *testing.T) {
	srv, model, refresher, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/refresh", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	deadline := time.Now().Add(time.Second)
	for {
		rows, _ := model.Snapshot()
		if len(rows) == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refresh never published")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := refresher.calls.Load(); n != 1 {
		t.Errorf("refresher called %d times, want 1", n)
	}
}

func TestRefreshMethodNotAllowed(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/refresh", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHistoryValidatesDays(t *testing.T) {
	srv, _, _, history := newTestServer(t)

	for _, q := range []string{"days=14", "days=0", "days=abc"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/history/vanar-chain?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
	if n := history.calls.Load(); n != 0 {
		t.Errorf("upstream hit %d times for invalid params", n)
	}
}

func TestHistoryFetchesSeries(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/history/vanar-chain?days=30", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HistoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.AssetID != "vanar-chain" || resp.Days != 30 || len(resp.Points) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHistoryDefaultsToSevenDays(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/history/bitcoin", nil))
	var resp HistoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Days != market.Lookback7 {
		t.Errorf("days = %d, want default 7", resp.Days)
	}
}

func TestHistoryCachesRecentFetches(t *testing.T) {
	srv, _, _, history := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/history/vanar-chain?days=7", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if n := history.calls.Load(); n != 1 {
		t.Errorf("upstream hit %d times, want 1 (cached)", n)
	}

	// A different lookback is a distinct cache entry.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/history/vanar-chain?days=30", nil))
	if n := history.calls.Load(); n != 2 {
		t.Errorf("upstream hit %d times after new lookback, want 2", n)
	}
}

func TestHistoryEmptySeriesStaysEmptyWhenCached(t *testing.T) {
	srv, _, _, history := newTestServer(t)
	history.series = nil

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/history/vanar-chain?days=7", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
		var raw struct {
			Points json.RawMessage `json:"points"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
			t.Fatalf("request %d: decoding: %v", i, err)
		}
		if string(raw.Points) != "[]" {
			t.Errorf("request %d: points = %s, want []", i, raw.Points)
		}
	}
	if n := history.calls.Load(); n != 1 {
		t.Errorf("upstream hit %d times, want 1 (second response from cache)", n)
	}
}

func TestHistoryUpstreamFailure(t *testing.T) {
	srv, _, _, history := newTestServer(t)
	history.err = &market.SourceUnavailableError{Source: "coingecko", Asset: "vanar-chain", Err: errors.New("status 429")}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/history/vanar-chain?days=7", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, model, _, _ := newTestServer(t)
	model.Publish(testSnapshot())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Status != "ok" || resp.Rows != 3 || resp.RefreshedAt == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/board", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}
