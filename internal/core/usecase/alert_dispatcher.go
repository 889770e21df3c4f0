package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/ports"
)

// AlertDispatcher drains the leak-alert outbox in the background, publishing
// each pending alert to the configured sink. Delivery failures are retried
// with quadratic backoff and dead-lettered after the retry budget is spent.
type AlertDispatcher struct {
	outbox    ports.AlertOutbox
	publisher ports.AlertPublisher
	interval  time.Duration
	batchSize int
	maxRetry  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dispatchSuccessTotal atomic.Int64
	dispatchFailureTotal atomic.Int64
	dispatchDeadTotal    atomic.Int64
}

type AlertDispatcherMetrics struct {
	DispatchSuccessTotal int64
	DispatchFailureTotal int64
	DispatchDeadTotal    int64
}

func NewAlertDispatcher(outbox ports.AlertOutbox, publisher ports.AlertPublisher, interval time.Duration, batchSize int) *AlertDispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &AlertDispatcher{outbox: outbox, publisher: publisher, interval: interval, batchSize: batchSize, maxRetry: 5}
}

func (d *AlertDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go d.loop(ctx)
}

func (d *AlertDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *AlertDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.dispatchBatch(ctx); err != nil {
			log.Printf("alert dispatch batch error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *AlertDispatcher) dispatchBatch(ctx context.Context) error {
	alerts, err := d.outbox.FetchPending(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		var notice domain.AlertNotice
		if err := json.Unmarshal(alert.PayloadJSON, &notice); err != nil {
			if markErr := d.markFailure(ctx, alert, fmt.Sprintf("decode payload: %v", err)); markErr != nil {
				return markErr
			}
			d.dispatchFailureTotal.Add(1)
			continue
		}

		if err := d.publisher.Publish(ctx, notice); err != nil {
			if markErr := d.markFailure(ctx, alert, err.Error()); markErr != nil {
				return markErr
			}
			d.dispatchFailureTotal.Add(1)
			continue
		}

		if err := d.outbox.MarkDispatched(ctx, alert.ID); err != nil {
			return err
		}
		d.dispatchSuccessTotal.Add(1)
	}

	return nil
}

func (d *AlertDispatcher) markFailure(ctx context.Context, alert domain.LeakAlert, errMsg string) error {
	attempts := alert.Attempts + 1
	if attempts >= d.maxRetry {
		if err := d.outbox.MarkDead(ctx, alert.ID, attempts, errMsg); err != nil {
			return err
		}
		d.dispatchDeadTotal.Add(1)
		return nil
	}
	next := time.Now().UTC().Add(backoffDuration(attempts)).Format(time.RFC3339Nano)
	return d.outbox.MarkFailed(ctx, alert.ID, attempts, next, errMsg)
}

func (d *AlertDispatcher) Metrics() AlertDispatcherMetrics {
	return AlertDispatcherMetrics{
		DispatchSuccessTotal: d.dispatchSuccessTotal.Load(),
		DispatchFailureTotal: d.dispatchFailureTotal.Load(),
		DispatchDeadTotal:    d.dispatchDeadTotal.Load(),
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	d := time.Duration(attempt*attempt) * time.Second
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
