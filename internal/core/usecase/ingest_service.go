package usecase

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/detect"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/ports"
	"github.com/google/uuid"
)

// IngestResult is what the ingestion endpoint reports back to the client:
// only the boolean verdict. Matched terms and channel stay operator-facing.
type IngestResult struct {
	Event   domain.TrackingEvent
	HasLeak bool
}

// IngestService accepts one event, classifies it, and persists the event plus
// its verdict. The event write is authoritative: a verdict or alert write
// failing afterwards never rolls the event back, since losing a leak flag is
// lower severity than losing the underlying observation.
type IngestService struct {
	store      ports.EventStore
	outbox     ports.AlertOutbox
	classifier *detect.Classifier
}

func NewIngestService(store ports.EventStore, outbox ports.AlertOutbox, classifier *detect.Classifier) *IngestService {
	return &IngestService{store: store, outbox: outbox, classifier: classifier}
}

func (s *IngestService) Ingest(ctx context.Context, payload map[string]any, raw json.RawMessage) (IngestResult, error) {
	if payload == nil {
		return IngestResult{}, domain.ErrInvalidEvent
	}

	verdict := s.classifier.Classify(raw, payload)

	event, err := s.store.InsertEvent(ctx, domain.EventFromPayload(payload, raw))
	if err != nil {
		return IngestResult{}, err
	}

	if verdict.HasLeak {
		s.recordLeak(ctx, event, verdict)
	}

	return IngestResult{Event: event, HasLeak: verdict.HasLeak}, nil
}

// recordLeak persists the verdict and spools the operator alert. Failures
// here are logged, not propagated: the event itself is already durable.
func (s *IngestService) recordLeak(ctx context.Context, event domain.TrackingEvent, verdict detect.Verdict) {
	log.Printf("leak detected session=%s event_id=%d channel=%s terms=%v",
		event.SessionID, event.ID, verdict.LeakChannel, verdict.MatchedTerms)

	_, err := s.store.InsertVerdict(ctx, domain.LeakageVerdict{
		SessionID:    event.SessionID,
		HasLeak:      true,
		MatchedTerms: verdict.MatchedTerms,
		LeakChannel:  verdict.LeakChannel,
	})
	if err != nil {
		log.Printf("persist verdict for event %d: %v", event.ID, err)
	}

	notice := domain.AlertNotice{
		AlertID:      uuid.NewString(),
		SessionID:    event.SessionID,
		EventID:      event.ID,
		EventType:    event.EventType,
		MatchedTerms: verdict.MatchedTerms,
		LeakChannel:  verdict.LeakChannel,
		DetectedAt:   time.Now().UTC(),
	}
	if err := s.outbox.Enqueue(ctx, notice); err != nil {
		log.Printf("enqueue leak alert for event %d: %v", event.ID, err)
	}
}
