// Package notification turns configuration-change events into user-facing
// notices for the chat UI.
package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ccbridge-ai/ccbridge/internal/eventbus"
)

const (
	dedupWindow       = 30 * time.Second
	notificationQueue = 64
)

// Service subscribes to configuration-change events, dedupes repeats, and
// publishes notices on the UI topic for the gateway to broadcast.
type Service struct {
	bus *eventbus.Bus

	lifecycle    eventbus.ServiceLifecycle
	settingsSub  *eventbus.TypedSubscription[eventbus.ConfigChangeEvent]
	providersSub *eventbus.TypedSubscription[eventbus.ConfigChangeEvent]

	// dedup: key = "{topic}:{path}", value = last notice time
	dedupMu sync.Mutex
	dedup   map[string]time.Time
}

// NewService creates a notification service.
func NewService(bus *eventbus.Bus) *Service {
	return &Service{
		bus:   bus,
		dedup: make(map[string]time.Time),
	}
}

// Start subscribes to event bus topics and begins consuming events.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycle.Start(ctx)

	s.settingsSub = eventbus.SubscribeTo(
		s.bus,
		eventbus.Config.SettingsChanged,
		eventbus.WithSubscriptionName("notification_settings"),
		eventbus.WithSubscriptionBuffer(notificationQueue),
	)

	s.providersSub = eventbus.SubscribeTo(
		s.bus,
		eventbus.Config.ProvidersChanged,
		eventbus.WithSubscriptionName("notification_providers"),
		eventbus.WithSubscriptionBuffer(notificationQueue),
	)

	s.lifecycle.AddSubscriptions(s.settingsSub, s.providersSub)
	s.lifecycle.Go(s.consumeSettingsEvents)
	s.lifecycle.Go(s.consumeProvidersEvents)

	return nil
}

// Shutdown cancels event consumers and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.lifecycle.Stop()
	return s.lifecycle.Wait(ctx)
}

func (s *Service) consumeSettingsEvents(ctx context.Context) {
	eventbus.Consume(ctx, s.settingsSub, nil, func(evt eventbus.ConfigChangeEvent) {
		s.handleChange(ctx, string(eventbus.TopicConfigSettingsChanged), evt,
			"Claude settings changed, active sessions were reloaded")
	})
}

func (s *Service) consumeProvidersEvents(ctx context.Context) {
	eventbus.Consume(ctx, s.providersSub, nil, func(evt eventbus.ConfigChangeEvent) {
		s.handleChange(ctx, string(eventbus.TopicConfigProvidersChanged), evt,
			"cc-switch provider configuration changed")
	})
}

func (s *Service) handleChange(ctx context.Context, topic string, evt eventbus.ConfigChangeEvent, message string) {
	key := fmt.Sprintf("%s:%s", topic, evt.Path)
	if s.isDuplicate(key) {
		return
	}

	log.Printf("[Notification] %s (%s %s)", message, evt.Kind, evt.Path)

	eventbus.Publish(ctx, s.bus, eventbus.UI.Notice, eventbus.SourceNotification, eventbus.NoticeEvent{
		Level:   "info",
		Message: message,
	})
}

func (s *Service) isDuplicate(key string) bool {
	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()

	now := time.Now()
	if last, ok := s.dedup[key]; ok && now.Sub(last) < dedupWindow {
		return true
	}
	s.dedup[key] = now

	// Lazy cleanup of expired entries.
	if len(s.dedup) > 100 {
		for k, v := range s.dedup {
			if now.Sub(v) >= dedupWindow {
				delete(s.dedup, k)
			}
		}
	}

	return false
}
