package ports

import (
	"context"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
)

// AlertOutbox spools leak alerts for asynchronous delivery.
type AlertOutbox interface {
	Enqueue(ctx context.Context, notice domain.AlertNotice) error
	FetchPending(ctx context.Context, limit int) ([]domain.LeakAlert, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, lastError string) error
	MarkDead(ctx context.Context, id int64, attempts int, lastError string) error
}

// AlertPublisher delivers one leak alert to an operator-visible sink.
type AlertPublisher interface {
	Publish(ctx context.Context, notice domain.AlertNotice) error
}
