package ports

import (
	"context"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
)

// EventStore owns the durable record of tracking events and leakage verdicts.
// Both entity types are append-only; nothing here updates or deletes.
type EventStore interface {
	InsertEvent(ctx context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error)
	InsertVerdict(ctx context.Context, verdict domain.LeakageVerdict) (domain.LeakageVerdict, error)

	CountEvents(ctx context.Context) (int64, error)
	CountDistinctSessions(ctx context.Context) (int64, error)
	CountEventsByType(ctx context.Context) (map[string]int64, error)
	CountSessionsWithLeak(ctx context.Context) (int64, error)

	RecentLeaks(ctx context.Context, limit int) ([]domain.LeakageVerdict, error)
	SessionEvents(ctx context.Context, sessionID string) ([]domain.TrackingEvent, error)
	AllEvents(ctx context.Context) ([]domain.TrackingEvent, error)
}
