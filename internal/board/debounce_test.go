package board

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerOnlyLatestFires(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var fired atomic.Int32
	var got atomic.Value

	for _, term := range []string{"v", "va", "van"} {
		term := term
		d.Trigger(func() {
			fired.Add(1)
			got.Store(term)
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("fired %d times, want 1", n)
	}
	if v, _ := got.Load().(string); v != "van" {
		t.Errorf("applied term %q, want latest %q", v, "van")
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Int32
	d.Trigger(func() { fired.Add(1) })
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("fired %d times after Stop, want 0", n)
	}
}

func TestDebouncerFiresAfterQuiescence(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	done := make(chan struct{})
	d.Trigger(func() { close(done) })

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("debounced fn never fired")
	}
}
