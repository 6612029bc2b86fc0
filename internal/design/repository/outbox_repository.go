package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/shared/events"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRepository stores domain events and serves them to the relay.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

var _ events.Store = (*OutboxRepository)(nil)

// Append writes one event. Call it on the transaction that makes the change.
func (r *OutboxRepository) Append(ctx context.Context, eventType, aggregateID, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return r.db.WithContext(ctx).Create(&entity.OutboxEvent{
		ID:           uuid.NewString(),
		EventType:    eventType,
		AggregateID:  aggregateID,
		PartitionKey: partitionKey,
		Payload:      body,
		OccurredAt:   time.Now().UTC(),
	}).Error
}

func (r *OutboxRepository) ListByAggregate(ctx context.Context, aggregateID string) ([]entity.OutboxEvent, error) {
	var items []entity.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("occurred_at ASC").
		Find(&items).Error
	return items, err
}

func (r *OutboxRepository) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]events.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	now := time.Now().UTC()
	var rows []entity.OutboxEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subquery := tx.Model(&entity.OutboxEvent{}).
			Select("id").
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Where("claim_until IS NULL OR claim_until < ?", now).
			Order("occurred_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		if err := tx.Model(&entity.OutboxEvent{}).
			Where("id IN (?)", subquery).
			Updates(map[string]interface{}{
				"claim_token": claimToken,
				"claim_until": claimUntil,
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ?", claimToken).
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Order("occurred_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]events.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, events.Record{
			ID:           row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      []byte(row.Payload),
			RetryCount:   row.RetryCount,
			OccurredAt:   row.OccurredAt,
		})
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id, claimToken string, at time.Time) error {
	return r.claimed(ctx, id, claimToken).Updates(map[string]interface{}{
		"published_at": at,
		"claim_token":  nil,
		"claim_until":  nil,
	}).Error
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id, claimToken, errMsg string, at time.Time) error {
	return r.claimed(ctx, id, claimToken).Updates(map[string]interface{}{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
		"claim_token":   nil,
		"claim_until":   nil,
	}).Error
}

func (r *OutboxRepository) MarkDeadLettered(ctx context.Context, id, claimToken, errMsg string, at time.Time) error {
	return r.claimed(ctx, id, claimToken).Updates(map[string]interface{}{
		"retry_count":      gorm.Expr("retry_count + 1"),
		"last_error":       errMsg,
		"last_error_at":    at,
		"dead_lettered_at": at,
		"claim_token":      nil,
		"claim_until":      nil,
	}).Error
}

func (r *OutboxRepository) claimed(ctx context.Context, id, claimToken string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&entity.OutboxEvent{}).
		Where("id = ?", id).
		Where("claim_token = ?", claimToken)
}
