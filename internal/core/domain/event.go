package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrInvalidEvent   = errors.New("invalid event")
	ErrInvalidSession = errors.New("invalid session id")
	ErrNotFound       = errors.New("not found")
)

// TrackingEvent is one client-reported interaction. The structured fields are a
// best-effort projection of the payload for querying; RawPayload is the event
// exactly as received and is the ground truth for classification and export.
type TrackingEvent struct {
	ID               int64
	TrackerID        string
	SessionID        string
	Timestamp        string
	EventType        string
	PageURL          string
	PageTitle        string
	Referrer         string
	UserAgent        string
	ScreenResolution string
	RawPayload       json.RawMessage
	IngestedAt       time.Time
}

// EventFromPayload projects the well-known fields out of a decoded event
// object. Every lookup is optional; unknown or missing keys are ignored and
// both snake_case and camelCase spellings are accepted.
func EventFromPayload(payload map[string]any, raw json.RawMessage) TrackingEvent {
	return TrackingEvent{
		TrackerID:        StringField(payload, "tracker_id", "trackerId"),
		SessionID:        StringField(payload, "session_id", "sessionId"),
		Timestamp:        StringField(payload, "timestamp"),
		EventType:        StringField(payload, "event_type", "eventType"),
		PageURL:          StringField(payload, "page_url", "pageUrl", "url"),
		PageTitle:        StringField(payload, "page_title", "pageTitle"),
		Referrer:         StringField(payload, "referrer"),
		UserAgent:        StringField(payload, "user_agent", "userAgent"),
		ScreenResolution: StringField(payload, "screen_resolution", "screenResolution"),
		RawPayload:       raw,
	}
}

// StringField returns the first string value found under any of keys, or "".
func StringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
