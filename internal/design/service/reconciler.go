package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const reconcileLockKey = "designhub:lock:reconcile"

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// DeliverableReconciler periodically recomputes every deliverable's status
// from its tasks. With redis configured only one instance runs a pass at a time.
type DeliverableReconciler struct {
	projects *ProjectService
	rdb      *redis.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewDeliverableReconciler returns a reconciler. interval <= 0 disables Run.
func NewDeliverableReconciler(projects *ProjectService, rdb *redis.Client, interval time.Duration, logger *zap.Logger) *DeliverableReconciler {
	return &DeliverableReconciler{
		projects: projects,
		rdb:      rdb,
		interval: interval,
		logger:   logger.Named("reconciler"),
	}
}

func (r *DeliverableReconciler) Run(ctx context.Context) error {
	if r.interval <= 0 {
		r.logger.Info("deliverable reconciler disabled")
		return nil
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reconcile pass failed", zap.Error(err))
		}
	}
}

// RunOnce runs a single pass and reports how many deliverables changed.
// It returns 0 without work when another instance holds the lock.
func (r *DeliverableReconciler) RunOnce(ctx context.Context) (int, error) {
	token, ok, err := r.acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		r.logger.Debug("reconcile lock held elsewhere, skipping pass")
		return 0, nil
	}
	defer r.release(token)

	changed, err := r.projects.RecomputeAll(ctx)
	if changed > 0 {
		r.logger.Info("deliverables reconciled", zap.Int("changed", changed))
	}
	return changed, err
}

func (r *DeliverableReconciler) acquire(ctx context.Context) (string, bool, error) {
	if r.rdb == nil {
		return "", true, nil
	}
	ttl := r.interval
	if ttl <= 0 {
		ttl = time.Minute
	}
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, reconcileLockKey, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (r *DeliverableReconciler) release(token string) {
	if r.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseLock.Run(ctx, r.rdb, []string{reconcileLockKey}, token).Err(); err != nil {
		r.logger.Warn("release reconcile lock failed", zap.Error(err))
	}
}
