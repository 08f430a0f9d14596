// Package reload reacts to external configuration changes: it watches the
// assistant settings file and the cc-switch provider database, and tears
// down in-flight chat sessions so the next interaction picks up fresh
// configuration.
package reload

import (
	"context"
	"log"
	"time"

	"github.com/ccbridge-ai/ccbridge/internal/eventbus"
	"github.com/ccbridge-ai/ccbridge/internal/watcher"
)

// SessionCloser is the session-manager surface the reloader needs.
type SessionCloser interface {
	CloseAll(reason string) int
}

// Options groups dependencies required to construct the reload service.
type Options struct {
	SettingsPath   string
	SwitcherDBPath string
	Window         time.Duration // rate-limit window, 0 = watcher default
	Sessions       SessionCloser
	Bus            *eventbus.Bus
}

// Service owns the two file watches and the reload behaviour.
//
// The two watch targets are fully independent: separate gate state,
// separate callbacks, no ordering guarantee between them.
type Service struct {
	opts Options

	settingsWatch *watcher.Watch
	dbWatch       *watcher.Watch
}

// NewService creates the reload service. Start must be called before any
// events are delivered.
func NewService(opts Options) *Service {
	return &Service{opts: opts}
}

// Start registers both file watches.
func (s *Service) Start(ctx context.Context) error {
	s.settingsWatch = watcher.New(s.opts.SettingsPath, s.opts.Window, s.onSettingsChange)
	s.dbWatch = watcher.New(s.opts.SwitcherDBPath, s.opts.Window, s.onProvidersChange)
	return nil
}

// Shutdown disposes both watches. Safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.settingsWatch != nil {
		s.settingsWatch.Close()
	}
	if s.dbWatch != nil {
		s.dbWatch.Close()
	}
	return nil
}

// Reload closes every active chat session. No new session is created here;
// the next user-initiated interaction re-reads configuration and starts
// fresh. Safe to call with zero active sessions.
func (s *Service) Reload() int {
	closed := s.opts.Sessions.CloseAll(eventbus.SessionReasonReload)
	if closed > 0 {
		log.Printf("[Reload] closed %d active session(s)", closed)
	}
	return closed
}

// onSettingsChange handles a transition of the assistant settings file.
// The change is reported unconditionally (no content diffing confirms the
// change was meaningful) and sessions are torn down immediately after.
func (s *Service) onSettingsChange(ev watcher.ChangeEvent) {
	log.Printf("[Reload] settings %s: %s", ev.Kind, ev.Path)

	eventbus.Publish(context.Background(), s.opts.Bus, eventbus.Config.SettingsChanged, eventbus.SourceReloadService, eventbus.ConfigChangeEvent{
		Path: ev.Path,
		Kind: string(ev.Kind),
		At:   ev.At,
	})

	s.Reload()
}

// onProvidersChange handles a transition of the cc-switch database. Provider
// edits do not touch live sessions; the UI is told to re-query so it can
// show the new provider list, and new sessions read the store on demand.
func (s *Service) onProvidersChange(ev watcher.ChangeEvent) {
	log.Printf("[Reload] provider database %s: %s", ev.Kind, ev.Path)

	eventbus.Publish(context.Background(), s.opts.Bus, eventbus.Config.ProvidersChanged, eventbus.SourceReloadService, eventbus.ConfigChangeEvent{
		Path: ev.Path,
		Kind: string(ev.Kind),
		At:   ev.At,
	})
}
