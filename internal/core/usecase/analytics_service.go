package usecase

import (
	"context"
	"fmt"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

const maxLeakListing = 100

// AnalyticsService exposes the read-only views over the event store. Every
// view is independent and idempotent; none hold state across requests.
type AnalyticsService struct {
	store ports.EventStore
}

func NewAnalyticsService(store ports.EventStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Stats composes four independent reads and joins them explicitly before
// responding. The result is not an atomic snapshot; counters may skew
// slightly under concurrent ingestion. Any failed read fails the whole view.
func (s *AnalyticsService) Stats(ctx context.Context) (domain.StatsSummary, error) {
	var summary domain.StatsSummary

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountEvents(ctx)
		summary.TotalEvents = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountDistinctSessions(ctx)
		summary.UniqueSessions = n
		return err
	})
	g.Go(func() error {
		byType, err := s.store.CountEventsByType(ctx)
		summary.EventsByType = byType
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountSessionsWithLeak(ctx)
		summary.SessionsWithLeak = n
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.StatsSummary{}, fmt.Errorf("compose stats: %w", err)
	}

	summary.LeakageRate = formatLeakageRate(summary.SessionsWithLeak, summary.UniqueSessions)
	if summary.EventsByType == nil {
		summary.EventsByType = map[string]int64{}
	}
	return summary, nil
}

func (s *AnalyticsService) RecentLeaks(ctx context.Context, limit int) ([]domain.LeakageVerdict, error) {
	if limit <= 0 || limit > maxLeakListing {
		limit = maxLeakListing
	}
	return s.store.RecentLeaks(ctx, limit)
}

func (s *AnalyticsService) SessionTimeline(ctx context.Context, sessionID string) ([]domain.TrackingEvent, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidSession
	}
	return s.store.SessionEvents(ctx, sessionID)
}

func (s *AnalyticsService) ExportEvents(ctx context.Context) ([]domain.TrackingEvent, error) {
	return s.store.AllEvents(ctx)
}

// formatLeakageRate reports flagged sessions as a percentage of all distinct
// sessions. Zero sessions yields "0.00%" rather than dividing by zero.
func formatLeakageRate(leakSessions, totalSessions int64) string {
	if totalSessions == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(leakSessions)/float64(totalSessions)*100)
}
