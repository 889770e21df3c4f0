package alerts

import (
	"context"
	"log"
	"strings"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
)

// LogPublisher writes leak alerts to the process log. It is the default sink
// when no webhook is configured, so a leak is always operator-visible.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, notice domain.AlertNotice) error {
	log.Printf("leak alert alert_id=%s session=%s event_id=%d channel=%s terms=%s",
		notice.AlertID, notice.SessionID, notice.EventID, notice.LeakChannel,
		strings.Join(notice.MatchedTerms, ","))
	return nil
}
