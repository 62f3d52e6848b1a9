// Package httpapi serves the dashboard REST API: the filtered board snapshot,
// on-demand refresh, price history, and a health probe.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"coinboard/internal/board"
	"coinboard/internal/market"
)

// historyCacheTTL bounds how long a fetched chart is reused before going back
// upstream. Keeps lookback toggling cheap without serving hour-old charts.
const historyCacheTTL = time.Minute

// Refresher triggers a full board refresh.
type Refresher interface {
	Refresh(ctx context.Context) (market.Snapshot, error)
}

// HistorySource fetches a price series for one asset.
type HistorySource interface {
	MarketChart(ctx context.Context, id string, days int) (market.HistorySeries, error)
}

// BoardServer serves the dashboard HTTP API.
type BoardServer struct {
	model     *board.Model
	refresher Refresher
	history   HistorySource
	log       *slog.Logger

	// One refresh in flight at a time; extra POSTs coalesce into it.
	refreshing sync.Mutex
	inFlight   bool

	// Cache for recent history fetches. Key: "id:days".
	historyCache sync.Map
}

type cachedHistory struct {
	series  market.HistorySeries
	fetched time.Time
}

// NewBoardServer creates a new dashboard HTTP server.
func NewBoardServer(model *board.Model, refresher Refresher, history HistorySource, log *slog.Logger) *BoardServer {
	return &BoardServer{
		model:     model,
		refresher: refresher,
		history:   history,
		log:       log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *BoardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistory)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *BoardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseFilter extracts the filter state from "search" and "change" query
// params. An unknown change value falls back to showing all rows.
func parseFilter(r *http.Request) market.FilterState {
	q := r.URL.Query()
	f := market.FilterState{Term: q.Get("search"), Direction: market.ChangeAll}
	switch q.Get("change") {
	case string(market.ChangeUp):
		f.Direction = market.ChangeUp
	case string(market.ChangeDown):
		f.Direction = market.ChangeDown
	}
	return f
}

func (s *BoardServer) handleBoard(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	rows, status := s.model.Snapshot()
	filtered := market.Filter(rows, filter)
	writeJSON(w, BoardResponse{
		Rows:   filtered,
		Status: status,
		Filter: filter,
		Total:  len(rows),
	})
}

// handleRefresh kicks off a background refresh and returns immediately.
// While a refresh is already running, the request is acknowledged without
// starting a second one.
func (s *BoardServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshing.Lock()
	if s.inFlight {
		s.refreshing.Unlock()
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, RefreshResponse{Status: "refreshing"})
		return
	}
	s.inFlight = true
	s.refreshing.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.refresher.Refresh(ctx); err != nil {
			s.log.Warn("background refresh failed", "error", err)
		}
		s.refreshing.Lock()
		s.inFlight = false
		s.refreshing.Unlock()
	}()

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, RefreshResponse{Status: "refreshing"})
}

func (s *BoardServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "asset id required")
		return
	}

	days := market.Lookback7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !market.ValidLookback(n) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be one of 1, 7, 30, 90; got %q", v))
			return
		}
		days = n
	}

	key := fmt.Sprintf("%s:%d", id, days)
	if v, ok := s.historyCache.Load(key); ok {
		entry := v.(*cachedHistory)
		if time.Since(entry.fetched) < historyCacheTTL {
			writeJSON(w, HistoryResponse{AssetID: id, Days: days, Points: entry.series})
			return
		}
	}

	series, err := s.history.MarketChart(r.Context(), id, days)
	if err != nil {
		s.log.Warn("history fetch failed", "asset", id, "days", days, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("history unavailable for %s", id))
		return
	}
	// Normalize before caching so cache hits serve [] rather than null.
	if series == nil {
		series = market.HistorySeries{}
	}
	s.historyCache.Store(key, &cachedHistory{series: series, fetched: time.Now()})

	writeJSON(w, HistoryResponse{AssetID: id, Days: days, Points: series})
}

func (s *BoardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	rows, status := s.model.Snapshot()
	resp := HealthResponse{Status: "ok", Rows: len(rows)}
	if !status.RefreshedAt.IsZero() {
		resp.RefreshedAt = status.RefreshedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, resp)
}
