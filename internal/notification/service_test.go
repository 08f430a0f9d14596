package notification

import (
	"context"
	"testing"
	"time"

	"github.com/ccbridge-ai/ccbridge/internal/eventbus"
)

func startService(t *testing.T) (*Service, *eventbus.Bus, *eventbus.TypedSubscription[eventbus.NoticeEvent]) {
	t.Helper()

	bus := eventbus.New()
	t.Cleanup(bus.Shutdown)

	svc := NewService(bus)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})

	notices := eventbus.SubscribeTo(bus, eventbus.UI.Notice, eventbus.WithSubscriptionBuffer(16))
	t.Cleanup(notices.Close)

	return svc, bus, notices
}

func waitNotice(t *testing.T, notices *eventbus.TypedSubscription[eventbus.NoticeEvent]) eventbus.NoticeEvent {
	t.Helper()
	select {
	case env := <-notices.C():
		return env.Payload
	case <-time.After(time.Second):
		t.Fatal("notice not published")
		return eventbus.NoticeEvent{}
	}
}

func TestSettingsChangeProducesNotice(t *testing.T) {
	_, bus, notices := startService(t)

	eventbus.Publish(context.Background(), bus, eventbus.Config.SettingsChanged, eventbus.SourceReloadService, eventbus.ConfigChangeEvent{
		Path: "/home/u/.claude/settings.json",
		Kind: "modified",
		At:   time.Now(),
	})

	notice := waitNotice(t, notices)
	if notice.Level != "info" {
		t.Fatalf("level = %s", notice.Level)
	}
	if notice.Message == "" {
		t.Fatal("empty notice message")
	}
}

func TestProvidersChangeProducesNotice(t *testing.T) {
	_, bus, notices := startService(t)

	eventbus.Publish(context.Background(), bus, eventbus.Config.ProvidersChanged, eventbus.SourceReloadService, eventbus.ConfigChangeEvent{
		Path: "/home/u/.cc-switch/cc-switch.db",
		Kind: "modified",
		At:   time.Now(),
	})

	notice := waitNotice(t, notices)
	if notice.Message == "" {
		t.Fatal("empty notice message")
	}
}

func TestRepeatedChangesDeduped(t *testing.T) {
	_, bus, notices := startService(t)

	evt := eventbus.ConfigChangeEvent{Path: "/p", Kind: "modified", At: time.Now()}
	eventbus.Publish(context.Background(), bus, eventbus.Config.SettingsChanged, eventbus.SourceReloadService, evt)
	waitNotice(t, notices)

	eventbus.Publish(context.Background(), bus, eventbus.Config.SettingsChanged, eventbus.SourceReloadService, evt)

	select {
	case env := <-notices.C():
		t.Fatalf("duplicate notice within dedup window: %+v", env.Payload)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDistinctPathsNotDeduped(t *testing.T) {
	_, bus, notices := startService(t)

	eventbus.Publish(context.Background(), bus, eventbus.Config.SettingsChanged, eventbus.SourceReloadService, eventbus.ConfigChangeEvent{Path: "/a"})
	waitNotice(t, notices)

	eventbus.Publish(context.Background(), bus, eventbus.Config.SettingsChanged, eventbus.SourceReloadService, eventbus.ConfigChangeEvent{Path: "/b"})
	waitNotice(t, notices)
}
