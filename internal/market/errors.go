package market

import (
	"errors"
	"fmt"
)

// SourceUnavailableError reports that a specific upstream call failed: a
// network error, a non-success status, or a payload missing an expected field.
type SourceUnavailableError struct {
	Source string // "binance" or "coingecko"
	Asset  string // asset id or pair the call was for, may be empty
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	if e.Asset != "" {
		return fmt.Sprintf("%s unavailable for %s: %v", e.Source, e.Asset, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// IsSourceUnavailable reports whether err is (or wraps) a SourceUnavailableError.
func IsSourceUnavailable(err error) bool {
	var se *SourceUnavailableError
	return errors.As(err, &se)
}

// ErrAggregation marks a failed dashboard refresh: one or both of the
// concurrent sub-fetches failed and no snapshot was published.
var ErrAggregation = errors.New("market data refresh failed")

// ErrHistory marks a failed chart fetch. It is surfaced as a transient
// notice, never as a fatal error.
var ErrHistory = errors.New("history fetch failed")
