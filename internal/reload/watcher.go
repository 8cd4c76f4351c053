// Package reload applies configuration changes to a running daemon: a
// polling file watcher raises change events, and a handler loads,
// validates, and applies the new file to the components that can absorb
// it live.
package reload

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// Event reports that the watched file changed.
type Event struct {
	Path    string
	ModTime time.Time
}

// Watcher polls a configuration file for modification time changes.
type Watcher struct {
	path     string
	interval time.Duration
	events   chan Event
	stop     chan struct{}
	stopped  chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher watches path. A non-positive interval selects the 5 second
// default.
func NewWatcher(path string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		path:     path,
		interval: interval,
		events:   make(chan Event, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins polling. Safe to call multiple times; only the first
// call starts the goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Events returns the channel of file change events.
func (w *Watcher) Events() <-chan Event { return w.events }

// Stop stops the watcher and waits for the polling goroutine to exit.
// Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.modTime()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current := w.modTime()
			if current.IsZero() || !current.After(last) {
				continue
			}
			last = current
			select {
			case w.events <- Event{Path: w.path, ModTime: current}:
			default:
				// A pending event already covers this change.
			}
		}
	}
}

// modTime returns the file's modification time, or zero when the file
// is missing or unreadable.
func (w *Watcher) modTime() time.Time {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
