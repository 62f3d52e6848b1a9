// Package board owns the merged dashboard state: the aggregation refresh that
// fans out to both upstream sources, the published snapshot model, the search
// debouncer, and the display formatters shared by the API and the console.
package board

import (
	"sync"
	"time"

	"coinboard/internal/market"
)

// Status is the side-channel state published next to the row set: whether a
// refresh is in flight, when data last landed, and the last refresh error.
// Errors never clear previously published rows retroactively; the blanking
// happens up front in BeginRefresh.
type Status struct {
	Loading     bool      `json:"loading"`
	RefreshedAt time.Time `json:"refreshedAt"`
	LastError   string    `json:"lastError,omitempty"`
}

// Model holds the currently published Snapshot. Snapshots are replaced
// wholesale; readers get copies and never observe a partially merged state.
type Model struct {
	mu     sync.RWMutex
	rows   market.Snapshot
	status Status
}

// NewModel creates an empty model in loading state, matching the dashboard's
// first render before any data has landed.
func NewModel() *Model {
	return &Model{status: Status{Loading: true}}
}

// BeginRefresh blanks the row list to an explicit loading state. The
// dashboard drops the previous snapshot the moment a refresh starts rather
// than keeping it on screen until new data lands.
func (m *Model) BeginRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	m.status.Loading = true
	m.status.LastError = ""
}

// Publish atomically replaces the snapshot and clears the loading state.
func (m *Model) Publish(snap market.Snapshot) {
	rows := make(market.Snapshot, len(snap))
	copy(rows, snap)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
	m.status = Status{Loading: false, RefreshedAt: time.Now()}
}

// Fail records a refresh failure. The list stays in its blanked state; the
// error is reported side-channel through Status.
func (m *Model) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Loading = false
	m.status.LastError = err.Error()
}

// Snapshot returns a copy of the current rows and the board status.
func (m *Model) Snapshot() (market.Snapshot, Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make(market.Snapshot, len(m.rows))
	copy(rows, m.rows)
	return rows, m.status
}
