package domain

import (
	"encoding/json"
	"time"
)

// AlertNotice is the operator-facing payload published when a leak is
// detected. It is distinct from the stored verdict: notices exist for
// real-time monitoring and carry everything a receiver needs without a
// database lookup.
type AlertNotice struct {
	AlertID      string    `json:"alert_id"`
	SessionID    string    `json:"session_id"`
	EventID      int64     `json:"event_id"`
	EventType    string    `json:"event_type"`
	MatchedTerms []string  `json:"matched_terms"`
	LeakChannel  string    `json:"leak_channel"`
	DetectedAt   time.Time `json:"detected_at"`
}

// LeakAlert is one spooled alert awaiting delivery. Rows move from pending to
// dispatched, or to dead once the retry budget is spent.
type LeakAlert struct {
	ID            int64
	AlertID       string
	SessionID     string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
