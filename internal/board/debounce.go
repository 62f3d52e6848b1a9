package board

import (
	"sync"
	"time"
)

// Debouncer coalesces a stream of input events: fn runs only after no new
// event has arrived for the quiescence delay. Each Trigger cancels and
// reschedules the pending run, so only the latest value is ever applied.
// Used for the search box so the filter recomputes when the user pauses
// typing rather than on every keystroke.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given quiescence delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the delay, cancelling any previously
// scheduled run. fn runs on a timer goroutine.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending run.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
