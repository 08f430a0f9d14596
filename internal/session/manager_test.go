package session

import (
	"testing"
	"time"

	"github.com/ccbridge-ai/ccbridge/internal/eventbus"
	"github.com/ccbridge-ai/ccbridge/internal/switcher"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager()

	provider := &switcher.Provider{ID: 2, Name: "B", Active: true}
	created := m.Create("first chat", provider)

	if created.ID == "" {
		t.Fatal("session ID not assigned")
	}
	if created.CurrentStatus() != StatusRunning {
		t.Fatalf("new session status = %s", created.CurrentStatus())
	}

	got, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Provider == nil || got.Provider.ID != 2 {
		t.Fatalf("provider snapshot lost: %+v", got.Provider)
	}
}

func TestGetUnknownSession(t *testing.T) {
	m := NewManager()
	if _, err := m.Get("missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestCreateToleratesNilProvider(t *testing.T) {
	m := NewManager()
	s := m.Create("no switcher", nil)
	if s.Provider != nil {
		t.Fatal("expected nil provider snapshot")
	}
}

func TestCloseAllWithZeroSessionsIsNoOp(t *testing.T) {
	m := NewManager()
	if closed := m.CloseAll(eventbus.SessionReasonReload); closed != 0 {
		t.Fatalf("expected 0 closed, got %d", closed)
	}
}

func TestCloseAllClosesRunningSessions(t *testing.T) {
	m := NewManager()
	bus := eventbus.New()
	defer bus.Shutdown()
	m.UseEventBus(bus)

	sub := eventbus.SubscribeTo(bus, eventbus.Sessions.Lifecycle, eventbus.WithSubscriptionBuffer(16))
	defer sub.Close()

	a := m.Create("a", nil)
	b := m.Create("b", nil)
	if err := m.Close(a.ID, "user_closed"); err != nil {
		t.Fatalf("close: %v", err)
	}

	closed := m.CloseAll(eventbus.SessionReasonReload)
	if closed != 1 {
		t.Fatalf("expected only the running session closed, got %d", closed)
	}
	if b.CurrentStatus() != StatusClosed {
		t.Fatal("running session not closed")
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("active count = %d after CloseAll", m.ActiveCount())
	}

	// Lifecycle events: 2 created, 1 user close, 1 reload close.
	var reloadEvents int
	timeout := time.After(time.Second)
	for i := 0; i < 4; i++ {
		select {
		case env := <-sub.C():
			if env.Payload.State == eventbus.SessionStateClosed && env.Payload.Reason == eventbus.SessionReasonReload {
				reloadEvents++
			}
		case <-timeout:
			t.Fatal("missing lifecycle events")
		}
	}
	if reloadEvents != 1 {
		t.Fatalf("expected 1 reload-close event, got %d", reloadEvents)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager()
	s := m.Create("a", nil)

	if err := m.Close(s.ID, "user_closed"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(s.ID, "user_closed"); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestListenersNotified(t *testing.T) {
	m := NewManager()

	var events []string
	m.AddEventListener(func(event string, _ *Session) {
		events = append(events, event)
	})

	s := m.Create("a", nil)
	m.Close(s.ID, "user_closed")

	if len(events) != 2 || events[0] != "session_created" || events[1] != "session_closed" {
		t.Fatalf("unexpected listener events: %v", events)
	}
}

func TestCleanupClosed(t *testing.T) {
	m := NewManager()

	old := m.Create("old", nil)
	old.StartTime = time.Now().Add(-2 * time.Hour)
	old.SetStatus(StatusClosed)

	recent := m.Create("recent", nil)
	recent.SetStatus(StatusClosed)

	running := m.Create("running", nil)

	if removed := m.CleanupClosed(time.Hour); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := m.Get(old.ID); err == nil {
		t.Fatal("old closed session should be gone")
	}
	if _, err := m.Get(recent.ID); err != nil {
		t.Fatal("recent closed session should remain")
	}
	if _, err := m.Get(running.ID); err != nil {
		t.Fatal("running session should remain")
	}
}
