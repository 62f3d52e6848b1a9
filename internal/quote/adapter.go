// Package quote resolves the pinned asset's quote: primary venue ticker
// first, secondary aggregator listing as the single fallback hop.
package quote

import (
	"context"
	"fmt"
	"log/slog"

	"coinboard/internal/market"
)

// FallbackNote discloses the USD≈USDT approximation when the quote comes
// from the aggregator instead of the venue.
const FallbackNote = "*Shown in USDT using USD≈USDT"

// TickerSource is the primary venue's 24h ticker lookup.
type TickerSource interface {
	Ticker24h(ctx context.Context, symbol string) (market.AssetQuote, error)
}

// ListingSource is the aggregator's single-asset listing lookup.
type ListingSource interface {
	MarketByID(ctx context.Context, id string) (market.Row, error)
}

// Adapter fetches the pinned asset's quote with a primary → fallback chain.
// It fails only when both sources fail. No retries, no backoff: one hop.
type Adapter struct {
	primary  TickerSource
	fallback ListingSource

	tickerSymbol string // venue pair symbol, e.g. "VANRYUSDT"
	assetID      string // aggregator id, e.g. "vanar-chain"
	pairLabel    string // display pair, e.g. "VANRY/USDT"

	log *slog.Logger
}

// NewAdapter wires the two sources for the configured pinned asset.
func NewAdapter(primary TickerSource, fallback ListingSource, tickerSymbol, assetID, pairLabel string, log *slog.Logger) *Adapter {
	return &Adapter{
		primary:      primary,
		fallback:     fallback,
		tickerSymbol: tickerSymbol,
		assetID:      assetID,
		pairLabel:    pairLabel,
		log:          log,
	}
}

// PinnedQuote returns the pinned asset's quote. A primary failure is
// recovered locally by reading the aggregator's listing (USD, labelled as
// USDT) and is not surfaced; the result then carries the fallback source id
// and a disclosure note. Both sources failing yields SourceUnavailableError
// naming the pinned asset.
func (a *Adapter) PinnedQuote(ctx context.Context) (market.AssetQuote, error) {
	quote, primaryErr := a.primary.Ticker24h(ctx, a.tickerSymbol)
	if primaryErr == nil {
		return quote, nil
	}
	a.log.Warn("primary venue ticker failed, trying aggregator fallback",
		"symbol", a.tickerSymbol, "error", primaryErr)

	row, fallbackErr := a.fallback.MarketByID(ctx, a.assetID)
	if fallbackErr != nil {
		return market.AssetQuote{}, &market.SourceUnavailableError{
			Source: "quote",
			Asset:  a.assetID,
			Err:    fmt.Errorf("primary: %v; fallback: %w", primaryErr, fallbackErr),
		}
	}
	if row.Price == nil {
		return market.AssetQuote{}, &market.SourceUnavailableError{
			Source: "quote",
			Asset:  a.assetID,
			Err:    fmt.Errorf("primary: %v; fallback listing has no price", primaryErr),
		}
	}

	return market.AssetQuote{
		SymbolPair:  a.pairLabel,
		Price:       *row.Price,
		Change24Pct: row.Change24Pct,
		Volume24:    row.Volume24,
		SourceID:    market.SourceSecondaryFallback,
		Note:        FallbackNote,
	}, nil
}
