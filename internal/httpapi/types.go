package httpapi

import (
	"coinboard/internal/board"
	"coinboard/internal/market"
)

// BoardResponse is the payload of GET /api/board: the filtered row set plus
// the refresh status side-channel and the filter that was applied.
type BoardResponse struct {
	Rows   []market.Row       `json:"rows"`
	Status board.Status       `json:"status"`
	Filter market.FilterState `json:"filter"`
	Total  int                `json:"total"`
}

// HistoryResponse is the payload of GET /api/history/{id}.
type HistoryResponse struct {
	AssetID string                `json:"assetId"`
	Days    int                   `json:"days"`
	Points  []market.HistoryPoint `json:"points"`
}

// RefreshResponse acknowledges POST /api/refresh.
type RefreshResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the payload of GET /api/health.
type HealthResponse struct {
	Status      string `json:"status"`
	RefreshedAt string `json:"refreshedAt,omitempty"`
	Rows        int    `json:"rows"`
}
