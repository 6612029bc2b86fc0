package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxRelay claims unpublished outbox rows and publishes them.
type OutboxRelay struct {
	logger     *zap.Logger
	store      Store
	publisher  Publisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

// NewOutboxRelay applies defaults for zero values.
func NewOutboxRelay(logger *zap.Logger, store Store, publisher Publisher, interval time.Duration, batchSize, maxRetries int) *OutboxRelay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxRelay{
		logger:     logger.Named("outbox"),
		store:      store,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   30 * time.Second,
		maxRetries: maxRetries,
	}
}

// Run loops until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("outbox iteration failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// BatchResult counts what one pass did.
type BatchResult struct {
	Claimed      int
	Published    int
	Failed       int
	DeadLettered int
}

// ProcessOnce publishes one batch.
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	claimToken := uuid.NewString()
	records, err := r.store.ClaimUnpublished(ctx, r.batchSize, claimToken, time.Now().UTC().Add(r.claimTTL))
	if err != nil {
		return res, err
	}
	res.Claimed = len(records)

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.RetryCount >= r.maxRetries {
			res.DeadLettered++
			r.markDeadLettered(ctx, rec, claimToken, "retry threshold reached before publish", now)
			continue
		}

		if err := r.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			res.Failed++
			if rec.RetryCount+1 >= r.maxRetries {
				res.DeadLettered++
				r.logger.Error("outbox event dead-lettered",
					zap.String("outbox_id", rec.ID),
					zap.String("event_type", rec.EventType),
					zap.Int("retry_count", rec.RetryCount+1),
					zap.Error(err),
				)
				r.markDeadLettered(ctx, rec, claimToken, err.Error(), now)
				continue
			}
			r.logger.Warn("outbox publish failed, will retry",
				zap.String("outbox_id", rec.ID),
				zap.String("event_type", rec.EventType),
				zap.Int("retry_count", rec.RetryCount+1),
				zap.Error(err),
			)
			if err := r.store.MarkFailed(ctx, rec.ID, claimToken, err.Error(), now); err != nil {
				r.logger.Error("mark outbox failed", zap.String("outbox_id", rec.ID), zap.Error(err))
			}
			continue
		}

		res.Published++
		if err := r.store.MarkPublished(ctx, rec.ID, claimToken, now); err != nil {
			r.logger.Error("mark outbox published", zap.String("outbox_id", rec.ID), zap.Error(err))
		}
	}

	if res.Claimed > 0 {
		r.logger.Info("outbox batch processed",
			zap.Int("claimed", res.Claimed),
			zap.Int("published", res.Published),
			zap.Int("failed", res.Failed),
			zap.Int("dead_lettered", res.DeadLettered),
		)
	}
	return res, nil
}

func (r *OutboxRelay) markDeadLettered(ctx context.Context, rec Record, claimToken, reason string, at time.Time) {
	if err := r.store.MarkDeadLettered(ctx, rec.ID, claimToken, reason, at); err != nil {
		r.logger.Error("mark outbox dead-lettered", zap.String("outbox_id", rec.ID), zap.Error(err))
	}
}
