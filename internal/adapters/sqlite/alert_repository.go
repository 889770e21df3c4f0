package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/adapters/sqlite/gormsqlite"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
)

type leakAlertModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	AlertID       string     `gorm:"column:alert_id;not null"`
	SessionID     string     `gorm:"column:session_id"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (leakAlertModel) TableName() string {
	return "leak_alerts"
}

// AlertRepository spools leak alerts in the same sqlite file as the events
// they describe, so an alert enqueued for a stored event survives restarts.
type AlertRepository struct {
	db *gormsqlite.DB
}

func NewAlertRepository(db *gormsqlite.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Enqueue(ctx context.Context, notice domain.AlertNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode alert notice: %w", err)
	}

	now := time.Now().UTC()
	model := leakAlertModel{
		AlertID:       notice.AlertID,
		SessionID:     notice.SessionID,
		PayloadJSON:   string(payload),
		Status:        "pending",
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("enqueue leak alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) FetchPending(ctx context.Context, limit int) ([]domain.LeakAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []leakAlertModel
	now := time.Now().UTC()
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", "pending", now).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending alerts: %w", err)
	}

	alerts := make([]domain.LeakAlert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, domain.LeakAlert{
			ID:            row.ID,
			AlertID:       row.AlertID,
			SessionID:     row.SessionID,
			PayloadJSON:   json.RawMessage(row.PayloadJSON),
			Status:        row.Status,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			LastError:     row.LastError,
			CreatedAt:     row.CreatedAt,
			DispatchedAt:  row.DispatchedAt,
		})
	}
	return alerts, nil
}

func (r *AlertRepository) MarkDispatched(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&leakAlertModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dispatched", "dispatched_at": &now, "last_error": ""}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert dispatched: %w", err)
	}
	return nil
}

func (r *AlertRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, lastError string) error {
	next, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("parse next attempt time: %w", err)
	}
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&leakAlertModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"attempts": attempts, "next_attempt_at": next, "last_error": lastError}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert failed: %w", err)
	}
	return nil
}

func (r *AlertRepository) MarkDead(ctx context.Context, id int64, attempts int, lastError string) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&leakAlertModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dead", "attempts": attempts, "last_error": lastError}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert dead: %w", err)
	}
	return nil
}
