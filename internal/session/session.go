// Package session tracks the detail-panel state: which asset is open, the
// selected lookback window, and the sequence numbers that keep late history
// responses from clobbering a newer selection.
package session

import (
	"sync"

	"coinboard/internal/market"
)

// HistoryRequest describes one history fetch the caller should perform.
// Seq must be passed back through Accept before applying the result.
type HistoryRequest struct {
	Seq     uint64
	AssetID string
	Days    int
}

// Controller is the detail-panel state machine. It is purely synchronous;
// the caller owns the actual fetching and calls Accept when a response
// arrives to learn whether it is still current.
type Controller struct {
	mu       sync.Mutex
	open     bool
	assetID  string
	lookback int
	seq      uint64
}

// DefaultLookback is the window in effect before the user first changes it.
const DefaultLookback = market.Lookback7

// NewController creates a Controller in the closed state.
func NewController() *Controller {
	return &Controller{lookback: DefaultLookback}
}

// Select opens the panel on the given asset and issues a history request for
// it. Selecting the already open asset is a no-op and issues nothing. The
// chosen lookback window carries over from one selection to the next, and
// survives a dismissal.
func (c *Controller) Select(assetID string) (HistoryRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open && c.assetID == assetID {
		return HistoryRequest{}, false
	}
	c.open = true
	c.assetID = assetID
	return c.issue(), true
}

// SetLookback changes the chart window for the open asset and issues a new
// history request. Closed panel or an invalid window issues nothing; setting
// the window already in effect is a no-op.
func (c *Controller) SetLookback(days int) (HistoryRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open || !market.ValidLookback(days) || days == c.lookback {
		return HistoryRequest{}, false
	}
	c.lookback = days
	return c.issue(), true
}

// Dismiss closes the panel. Any in-flight history response becomes stale.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return
	}
	c.open = false
	c.assetID = ""
	c.seq++
}

// Accept reports whether a response carrying seq is still the current
// request. Anything issued before the latest Select, SetLookback, or Dismiss
// is stale and must be dropped.
func (c *Controller) Accept(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && seq == c.seq
}

// Current returns the open asset id and lookback, or ok=false when closed.
func (c *Controller) Current() (assetID string, days int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return "", 0, false
	}
	return c.assetID, c.lookback, true
}

// issue bumps the sequence and snapshots the request. Callers hold c.mu.
func (c *Controller) issue() HistoryRequest {
	c.seq++
	return HistoryRequest{Seq: c.seq, AssetID: c.assetID, Days: c.lookback}
}
