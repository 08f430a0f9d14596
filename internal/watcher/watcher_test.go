package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recorder struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (r *recorder) handle(ev ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) last() ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newTestWatch(t *testing.T, rec *recorder) (*Watch, string) {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(target, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	w := New(target, DefaultWindow, rec.handle)
	t.Cleanup(w.Close)
	return w, target
}

func TestDebounceSuppressesBurst(t *testing.T) {
	rec := &recorder{}
	w, target := newTestWatch(t, rec)

	base := time.Now()
	w.dispatch(fsnotify.Write, target, base)
	w.dispatch(fsnotify.Write, target, base.Add(200*time.Millisecond))

	if got := rec.count(); got != 1 {
		t.Fatalf("events at t=0 and t=200ms should fire once, got %d", got)
	}
	if rec.last().Kind != KindModified {
		t.Fatalf("unexpected kind %s", rec.last().Kind)
	}
}

func TestDebouncePassesAfterWindow(t *testing.T) {
	rec := &recorder{}
	w, target := newTestWatch(t, rec)

	base := time.Now()
	w.dispatch(fsnotify.Write, target, base)
	w.dispatch(fsnotify.Write, target, base.Add(600*time.Millisecond))

	if got := rec.count(); got != 2 {
		t.Fatalf("events at t=0 and t=600ms should fire twice, got %d", got)
	}
}

func TestDispatchMapsEventKinds(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want Kind
	}{
		{name: "create", op: fsnotify.Create, want: KindCreated},
		{name: "write", op: fsnotify.Write, want: KindModified},
		{name: "remove", op: fsnotify.Remove, want: KindDeleted},
		{name: "rename", op: fsnotify.Rename, want: KindDeleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			w, target := newTestWatch(t, rec)

			w.dispatch(tt.op, target, time.Now())
			if rec.count() != 1 {
				t.Fatalf("expected one event, got %d", rec.count())
			}
			ev := rec.last()
			if ev.Kind != tt.want {
				t.Fatalf("kind = %s, want %s", ev.Kind, tt.want)
			}
			if ev.Path != target {
				t.Fatalf("path = %s, want %s", ev.Path, target)
			}
			if ev.At.IsZero() {
				t.Fatal("event timestamp not set")
			}
		})
	}
}

func TestDispatchIgnoresChmodAndOtherFiles(t *testing.T) {
	rec := &recorder{}
	w, target := newTestWatch(t, rec)

	w.dispatch(fsnotify.Chmod, target, time.Now())
	w.dispatch(fsnotify.Write, filepath.Join(filepath.Dir(target), "other.json"), time.Now())

	if rec.count() != 0 {
		t.Fatalf("expected no events, got %d", rec.count())
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	rec := &recorder{}
	w, target := newTestWatch(t, rec)

	w.Close()
	w.Close() // idempotent

	w.dispatch(fsnotify.Write, target, time.Now())
	if rec.count() != 0 {
		t.Fatalf("events after close must not be delivered, got %d", rec.count())
	}
}

func TestMissingParentDirectoryYieldsNoOpWatch(t *testing.T) {
	rec := &recorder{}
	target := filepath.Join(t.TempDir(), "nope", "settings.json")

	w := New(target, DefaultWindow, rec.handle)
	w.Close()
	w.Close()

	if rec.count() != 0 {
		t.Fatalf("no-op watch delivered %d events", rec.count())
	}
}

func TestIndependentWatchesHaveIndependentGates(t *testing.T) {
	recA := &recorder{}
	recB := &recorder{}
	wA, targetA := newTestWatch(t, recA)
	wB, targetB := newTestWatch(t, recB)

	base := time.Now()
	wA.dispatch(fsnotify.Write, targetA, base)
	// B's gate must not have been consumed by A's event.
	wB.dispatch(fsnotify.Write, targetB, base.Add(100*time.Millisecond))

	if recA.count() != 1 || recB.count() != 1 {
		t.Fatalf("expected one event each, got A=%d B=%d", recA.count(), recB.count())
	}
}

func TestRealFilesystemEventDelivered(t *testing.T) {
	rec := &recorder{}
	_, target := newTestWatch(t, rec)

	if err := os.WriteFile(target, []byte(`{"changed":true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for rec.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no event delivered for a real file write")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
