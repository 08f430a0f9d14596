// Package watcher observes single files for create/modify/delete transitions,
// rate-limiting bursts so that rapid editor saves produce one callback.
package watcher

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies a filesystem transition.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
)

// ChangeEvent describes one observed transition on a watched file. The
// timestamp is assigned at detection time, not at underlying OS-event time.
// Events are constructed inside the watch loop and handed to the handler
// once; they are not retained.
type ChangeEvent struct {
	Path string
	Kind Kind
	At   time.Time
}

// Handler receives change events that pass the rate-limit gate.
type Handler func(ChangeEvent)

// DefaultWindow is the rate-limit window applied when none is given.
const DefaultWindow = 500 * time.Millisecond

// gate is a leading-edge rate limiter: the first event of a burst passes
// and later events within the window are dropped. One gate belongs to one
// watch instance; sharing a gate across watch targets is not safe and is
// deliberately not supported.
type gate struct {
	window time.Duration
	mu     sync.Mutex
	last   time.Time
}

func (g *gate) allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) < g.window {
		return false
	}
	g.last = now
	return true
}

// Watch observes a single file for create/modify/delete events.
//
// The watch registers interest in the file's parent directory and filters
// events by base name, so the underlying mechanism does not need to support
// single-file watches (and deletions of the file itself stay visible).
type Watch struct {
	target  string
	handler Handler
	gate    *gate

	fw     *fsnotify.Watcher
	closed atomic.Bool
	done   chan struct{}
}

// New starts watching the given file. window <= 0 selects DefaultWindow.
//
// When the parent directory does not exist, or the watch cannot be
// registered, a warning is logged and a no-op watch is returned; there is
// no retry if the directory appears later. The returned watch's Close is
// always safe to call.
func New(target string, window time.Duration, handler Handler) *Watch {
	if window <= 0 {
		window = DefaultWindow
	}

	w := &Watch{
		target:  target,
		handler: handler,
		gate:    &gate{window: window},
		done:    make(chan struct{}),
	}

	dir := filepath.Dir(target)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Printf("[Watcher] parent directory %s does not exist, not watching %s", dir, target)
		w.closed.Store(true)
		close(w.done)
		return w
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[Watcher] create watcher for %s: %v", target, err)
		w.closed.Store(true)
		close(w.done)
		return w
	}
	if err := fw.Add(dir); err != nil {
		log.Printf("[Watcher] watch %s: %v", dir, err)
		fw.Close()
		w.closed.Store(true)
		close(w.done)
		return w
	}

	w.fw = fw
	go w.run()
	log.Printf("[Watcher] watching %s", target)
	return w
}

// Close stops the watch and releases the underlying watcher. It is
// idempotent: closing twice is a no-op. Events already queued by the OS at
// close time are dropped, never delivered.
func (w *Watch) Close() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	if w.fw != nil {
		w.fw.Close()
	}
	<-w.done
}

func (w *Watch) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.dispatch(event.Op, event.Name, time.Now())

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("[Watcher] %s: %v", w.target, err)
		}
	}
}

// dispatch filters one raw event by name and kind, applies the rate-limit
// gate, and invokes the handler. Post-close invocations are dropped.
func (w *Watch) dispatch(op fsnotify.Op, name string, now time.Time) {
	if w.closed.Load() {
		return
	}
	if filepath.Base(name) != filepath.Base(w.target) {
		return
	}

	var kind Kind
	switch {
	case op&fsnotify.Create != 0:
		kind = KindCreated
	case op&fsnotify.Write != 0:
		kind = KindModified
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		kind = KindDeleted
	default:
		return // chmod etc.
	}

	if !w.gate.allow(now) {
		return
	}

	w.handler(ChangeEvent{
		Path: w.target,
		Kind: kind,
		At:   now,
	})
}
