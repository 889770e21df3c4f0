package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/adapters/sqlite/gormsqlite"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
)

type trackingEventModel struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TrackerID        string    `gorm:"column:tracker_id"`
	SessionID        string    `gorm:"column:session_id"`
	Timestamp        string    `gorm:"column:timestamp"`
	EventType        string    `gorm:"column:event_type"`
	PageURL          string    `gorm:"column:page_url"`
	PageTitle        string    `gorm:"column:page_title"`
	Referrer         string    `gorm:"column:referrer"`
	UserAgent        string    `gorm:"column:user_agent"`
	ScreenResolution string    `gorm:"column:screen_resolution"`
	EventData        string    `gorm:"column:event_data"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
}

func (trackingEventModel) TableName() string {
	return "tracking_events"
}

type leakageModel struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID        string    `gorm:"column:session_id"`
	HasSensitiveLeak int       `gorm:"column:has_sensitive_leak;not null"`
	SensitiveTerms   string    `gorm:"column:sensitive_terms"`
	LeakType         string    `gorm:"column:leak_type"`
	AnalyzedAt       time.Time `gorm:"column:analyzed_at;not null"`
}

func (leakageModel) TableName() string {
	return "leakage_analysis"
}

// EventStore persists tracking events and leakage verdicts. All writes go
// through the single-writer handle; reads use the pooled query-only handle.
type EventStore struct {
	db *gormsqlite.DB
}

func NewEventStore(db *gormsqlite.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) InsertEvent(ctx context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error) {
	model := trackingEventModel{
		TrackerID:        event.TrackerID,
		SessionID:        event.SessionID,
		Timestamp:        event.Timestamp,
		EventType:        event.EventType,
		PageURL:          event.PageURL,
		PageTitle:        event.PageTitle,
		Referrer:         event.Referrer,
		UserAgent:        event.UserAgent,
		ScreenResolution: event.ScreenResolution,
		EventData:        string(event.RawPayload),
		CreatedAt:        time.Now().UTC(),
	}

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.TrackingEvent{}, fmt.Errorf("insert tracking event: %w", err)
	}

	return eventToDomain(model), nil
}

func (s *EventStore) InsertVerdict(ctx context.Context, verdict domain.LeakageVerdict) (domain.LeakageVerdict, error) {
	terms, err := json.Marshal(verdict.MatchedTerms)
	if err != nil {
		return domain.LeakageVerdict{}, fmt.Errorf("encode matched terms: %w", err)
	}

	model := leakageModel{
		SessionID:        verdict.SessionID,
		HasSensitiveLeak: boolToInt(verdict.HasLeak),
		SensitiveTerms:   string(terms),
		LeakType:         verdict.LeakChannel,
		AnalyzedAt:       time.Now().UTC(),
	}

	err = s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.LeakageVerdict{}, fmt.Errorf("insert leakage verdict: %w", err)
	}

	return verdictToDomain(model)
}

func (s *EventStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&trackingEventModel{}).Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *EventStore) CountDistinctSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&trackingEventModel{}).Distinct("session_id").Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count distinct sessions: %w", err)
	}
	return count, nil
}

func (s *EventStore) CountEventsByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		EventType string `gorm:"column:event_type"`
		Count     int64  `gorm:"column:count"`
	}
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&trackingEventModel{}).
			Select("event_type, COUNT(*) AS count").
			Group("event_type").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.EventType] = row.Count
	}
	return result, nil
}

func (s *EventStore) CountSessionsWithLeak(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&leakageModel{}).
			Where("has_sensitive_leak = ?", 1).
			Distinct("session_id").
			Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count sessions with leak: %w", err)
	}
	return count, nil
}

func (s *EventStore) RecentLeaks(ctx context.Context, limit int) ([]domain.LeakageVerdict, error) {
	var models []leakageModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("has_sensitive_leak = ?", 1).
			Order("id DESC").
			Limit(limit).
			Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list recent leaks: %w", err)
	}

	verdicts := make([]domain.LeakageVerdict, 0, len(models))
	for _, model := range models {
		verdict, err := verdictToDomain(model)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, verdict)
	}
	return verdicts, nil
}

// SessionEvents orders by the client-supplied timestamp string, with the
// insertion id as tiebreaker. The timestamp is untrusted and unvalidated;
// that ordering contract is deliberate.
func (s *EventStore) SessionEvents(ctx context.Context, sessionID string) ([]domain.TrackingEvent, error) {
	var models []trackingEventModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("session_id = ?", sessionID).
			Order("timestamp ASC, id ASC").
			Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	return eventsToDomain(models), nil
}

func (s *EventStore) AllEvents(ctx context.Context) ([]domain.TrackingEvent, error) {
	var models []trackingEventModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Order("id DESC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("export events: %w", err)
	}
	return eventsToDomain(models), nil
}

func eventToDomain(model trackingEventModel) domain.TrackingEvent {
	return domain.TrackingEvent{
		ID:               model.ID,
		TrackerID:        model.TrackerID,
		SessionID:        model.SessionID,
		Timestamp:        model.Timestamp,
		EventType:        model.EventType,
		PageURL:          model.PageURL,
		PageTitle:        model.PageTitle,
		Referrer:         model.Referrer,
		UserAgent:        model.UserAgent,
		ScreenResolution: model.ScreenResolution,
		RawPayload:       json.RawMessage(model.EventData),
		IngestedAt:       model.CreatedAt,
	}
}

func eventsToDomain(models []trackingEventModel) []domain.TrackingEvent {
	events := make([]domain.TrackingEvent, 0, len(models))
	for _, model := range models {
		events = append(events, eventToDomain(model))
	}
	return events
}

func verdictToDomain(model leakageModel) (domain.LeakageVerdict, error) {
	var terms []string
	if model.SensitiveTerms != "" {
		if err := json.Unmarshal([]byte(model.SensitiveTerms), &terms); err != nil {
			return domain.LeakageVerdict{}, fmt.Errorf("decode sensitive terms for verdict %d: %w", model.ID, err)
		}
	}
	return domain.LeakageVerdict{
		ID:           model.ID,
		SessionID:    model.SessionID,
		HasLeak:      model.HasSensitiveLeak == 1,
		MatchedTerms: terms,
		LeakChannel:  model.LeakType,
		AnalyzedAt:   model.AnalyzedAt,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
