package eventbus

import "time"

// Topic identifies a logical channel on the bus.
type Topic string

const (
	TopicConfigSettingsChanged  Topic = "config.settings_changed"
	TopicConfigProvidersChanged Topic = "config.providers_changed"
	TopicSessionsLifecycle      Topic = "sessions.lifecycle"
	TopicUINotice               Topic = "ui.notice"
)

// Source describes which component produced an event.
type Source string

const (
	SourceSessionManager Source = "session_manager"
	SourceReloadService  Source = "reload_service"
	SourceNotification   Source = "notification"
	SourceDaemon         Source = "daemon"
	SourceUnknown        Source = "unknown"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic     Topic
	Timestamp time.Time
	Source    Source
	Payload   any
}

// ConfigChangeEvent notifies consumers that a watched configuration file
// transitioned on disk.
type ConfigChangeEvent struct {
	Path string    // absolute path of the affected file
	Kind string    // created | modified | deleted
	At   time.Time // wall clock at detection time, not OS event time
}

// SessionState summarises lifecycle changes.
type SessionState string

const (
	SessionStateCreated SessionState = "created"
	SessionStateClosed  SessionState = "closed"
)

// SessionReasonReload is the Reason set on lifecycle events published when
// sessions are torn down because the provider configuration changed.
const SessionReasonReload = "config_reload"

// SessionLifecycleEvent notifies consumers about session state transitions.
type SessionLifecycleEvent struct {
	SessionID string
	State     SessionState
	Reason    string
}

// NoticeEvent carries a user-facing notice destined for the chat UI.
type NoticeEvent struct {
	Level   string `json:"level"` // info | warning
	Message string `json:"message"`
}

// Typed topic descriptors grouped by area.
var (
	Config = struct {
		SettingsChanged  TopicDef[ConfigChangeEvent]
		ProvidersChanged TopicDef[ConfigChangeEvent]
	}{
		SettingsChanged:  NewTopicDef[ConfigChangeEvent](TopicConfigSettingsChanged),
		ProvidersChanged: NewTopicDef[ConfigChangeEvent](TopicConfigProvidersChanged),
	}

	Sessions = struct {
		Lifecycle TopicDef[SessionLifecycleEvent]
	}{
		Lifecycle: NewTopicDef[SessionLifecycleEvent](TopicSessionsLifecycle),
	}

	UI = struct {
		Notice TopicDef[NoticeEvent]
	}{
		Notice: NewTopicDef[NoticeEvent](TopicUINotice),
	}
)
