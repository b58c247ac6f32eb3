// Package watcher watches dependency directories and reports changed paths
// in debounced batches.
package watcher

import (
	"context"
	"sync"
	"time"
	"unique"

	"go.trai.ch/assetbuilder/internal/core/ports"
)

// DefaultDebounceWindow is the default time window for debouncing file events.
const DefaultDebounceWindow = 100 * time.Millisecond

// Debouncer coalesces rapid file system events into batched invalidations.
type Debouncer struct {
	mu       sync.Mutex
	pending  map[unique.Handle[string]]struct{}
	timer    *time.Timer
	window   time.Duration
	callback func(paths []string)
}

// NewDebouncer creates a new debouncer with the given time window and callback.
func NewDebouncer(window time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		pending:  make(map[unique.Handle[string]]struct{}),
		window:   window,
		callback: callback,
	}
}

// Add adds a file path to the pending set and restarts the window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[unique.Make(path)] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// fire is called when the debounce window expires.
func (d *Debouncer) fire() {
	paths := d.drain(false)
	if len(paths) > 0 && d.callback != nil {
		go d.callback(paths)
	}
}

// Flush runs the callback with all pending paths and blocks until it returns.
func (d *Debouncer) Flush() {
	paths := d.drain(true)
	if len(paths) > 0 && d.callback != nil {
		d.callback(paths)
	}
}

// drain empties the pending set. When stop is set a running timer is
// cancelled; if it already fired, drain leaves the work to it.
func (d *Debouncer) drain(stop bool) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stop && d.timer != nil && !d.timer.Stop() {
		return nil
	}
	d.timer = nil

	paths := make([]string, 0, len(d.pending))
	for handle := range d.pending {
		paths = append(paths, handle.Value())
	}
	clear(d.pending)
	return paths
}

// Forward feeds every event of w into d until the event stream ends or ctx
// is done, then flushes whatever is still pending.
func Forward(ctx context.Context, w ports.Watcher, d *Debouncer) {
	defer d.Flush()

	for event := range w.Events() {
		if ctx.Err() != nil {
			return
		}
		d.Add(event.Path)
	}
}
