// Package market defines the domain model for the coinboard dashboard:
// merged market rows, the pinned-asset quote, history series, and the pure
// filter applied to a published snapshot.
package market

// QuoteSourceID identifies which upstream produced the pinned asset's quote.
type QuoteSourceID string

const (
	// SourcePrimary is the primary venue ticker (Binance).
	SourcePrimary QuoteSourceID = "binance"
	// SourceSecondaryFallback is the aggregator fallback (CoinGecko, USD
	// denominated and presented as USDT).
	SourceSecondaryFallback QuoteSourceID = "coingecko-usd"
)

// AssetQuote is the pinned asset's quote after source normalization. Note is
// set only when the quote came from the secondary fallback.
type AssetQuote struct {
	SymbolPair  string        `json:"symbolPair"`
	Price       float64       `json:"price"`
	Change24Pct *float64      `json:"change24hPct"`
	Volume24    *float64      `json:"volume24h"`
	SourceID    QuoteSourceID `json:"sourceId"`
	Note        string        `json:"note,omitempty"`
}

// Row is one merged dashboard row. Quote is non-nil only for the pinned row.
type Row struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Image       string      `json:"image,omitempty"`
	Price       *float64    `json:"price"`
	Change24Pct *float64    `json:"change24hPct"`
	Volume24    *float64    `json:"volume24h"`
	Pair        string      `json:"pair"`
	Rank        *int        `json:"rank"`
	Quote       *AssetQuote `json:"quote,omitempty"`
}

// Snapshot is one complete merged view of all rows, produced atomically by a
// single aggregation run. The pinned row is always at index 0.
type Snapshot []Row

// HistoryPoint is a single (timestamp, price) sample for the chart panel.
type HistoryPoint struct {
	TimestampMS int64   `json:"t"`
	Price       float64 `json:"p"`
}

// HistorySeries is ordered by TimestampMS ascending and covers exactly the
// requested lookback window. It may be empty.
type HistorySeries []HistoryPoint

// ChangeDirection selects rows by the sign of their 24h change.
type ChangeDirection string

const (
	ChangeAll  ChangeDirection = "all"
	ChangeUp   ChangeDirection = "up"
	ChangeDown ChangeDirection = "down"
)

// FilterState is the user's current search term and change-direction filter.
type FilterState struct {
	Term      string          `json:"term"`
	Direction ChangeDirection `json:"direction"`
}

// History chart windows, in days. Only the listed values are valid.
const (
	Lookback1  = 1
	Lookback7  = 7
	Lookback30 = 30
	Lookback90 = 90
)

// ValidLookback reports whether days is one of the supported windows.
func ValidLookback(days int) bool {
	switch days {
	case Lookback1, Lookback7, Lookback30, Lookback90:
		return true
	}
	return false
}

// Float64 returns a pointer to v. Convenience for optional numeric fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
