package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"coinboard/internal/market"
)

// MarketSource provides one page of the ranked market listing.
type MarketSource interface {
	Markets(ctx context.Context, page, perPage int) ([]market.Row, error)
}

// QuoteSource provides the pinned asset's quote (with its own fallback chain).
type QuoteSource interface {
	PinnedQuote(ctx context.Context) (market.AssetQuote, error)
}

// PinnedSpec identifies the pinned asset for the merge step.
type PinnedSpec struct {
	AssetID     string // aggregator id, e.g. "vanar-chain"
	PairLabel   string // e.g. "VANRY/USDT"
	DisplayName string // used when the listing lookup misses
}

// Aggregator merges the market listing with the pinned quote into one
// Snapshot and publishes it to the model.
type Aggregator struct {
	markets MarketSource
	quotes  QuoteSource
	model   *Model
	pinned  PinnedSpec
	page    int
	perPage int
	log     *slog.Logger
}

// NewAggregator wires the two sources into the published model.
func NewAggregator(markets MarketSource, quotes QuoteSource, model *Model, pinned PinnedSpec, page, perPage int, log *slog.Logger) *Aggregator {
	return &Aggregator{
		markets: markets,
		quotes:  quotes,
		model:   model,
		pinned:  pinned,
		page:    page,
		perPage: perPage,
		log:     log,
	}
}

// Refresh fetches the listing and the pinned quote concurrently, merges them,
// and publishes the result atomically. On any sub-fetch failure it records a
// single aggregated error on the model and publishes nothing; the row list
// stays in the loading/empty state entered when the refresh began.
func (a *Aggregator) Refresh(ctx context.Context) (market.Snapshot, error) {
	a.model.BeginRefresh()

	var (
		listing []market.Row
		pinned  market.AssetQuote
	)

	// Fan out, fan in: both requests are in flight before either is awaited.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listing, err = a.markets.Markets(gctx, a.page, a.perPage)
		return err
	})
	g.Go(func() error {
		var err error
		pinned, err = a.quotes.PinnedQuote(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		wrapped := fmt.Errorf("%w: %w", market.ErrAggregation, err)
		a.model.Fail(wrapped)
		a.log.Error("dashboard refresh failed", "error", err)
		return nil, wrapped
	}

	snap := a.merge(listing, pinned)
	a.model.Publish(snap)
	a.log.Info("dashboard refreshed", "rows", len(snap), "pinnedSource", pinned.SourceID)
	return snap, nil
}

// merge builds the snapshot: the pinned row first (quote data reconciled
// with listing metadata), then the rest of the listing in its original order
// with the pinned id deduplicated out.
func (a *Aggregator) merge(listing []market.Row, quote market.AssetQuote) market.Snapshot {
	pinnedRow := market.Row{
		ID:          a.pinned.AssetID,
		Name:        a.pinned.DisplayName,
		Symbol:      pairBase(a.pinned.PairLabel),
		Price:       market.Float64(quote.Price),
		Change24Pct: quote.Change24Pct,
		Volume24:    quote.Volume24,
		Pair:        a.pinned.PairLabel,
		Quote:       &quote,
	}

	// Recover display metadata from the listing entry, if present. The quote
	// always wins on price/change/volume.
	for _, row := range listing {
		if row.ID != a.pinned.AssetID {
			continue
		}
		if row.Name != "" {
			pinnedRow.Name = row.Name
		}
		if row.Symbol != "" {
			pinnedRow.Symbol = row.Symbol
		}
		pinnedRow.Image = row.Image
		pinnedRow.Rank = row.Rank
		break
	}

	snap := make(market.Snapshot, 0, len(listing)+1)
	snap = append(snap, pinnedRow)
	for _, row := range listing {
		if row.ID == a.pinned.AssetID {
			continue
		}
		if row.Pair == "" {
			row.Pair = strings.ToUpper(row.Symbol) + "/USDT"
		}
		snap = append(snap, row)
	}
	return snap
}

// pairBase extracts the base symbol from a pair label like "VANRY/USDT".
func pairBase(pair string) string {
	if i := strings.IndexByte(pair, '/'); i > 0 {
		return strings.ToLower(pair[:i])
	}
	return strings.ToLower(pair)
}
