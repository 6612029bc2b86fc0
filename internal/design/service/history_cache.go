package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const historyCacheKeyPrefix = "designhub:drawing:"

// historyCache is a read-through redis cache of drawing histories.
// A nil client disables it; redis errors fall back to the database.
type historyCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func newHistoryCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *historyCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &historyCache{rdb: rdb, ttl: ttl, logger: logger.Named("history_cache")}
}

func historyKey(drawingID string) string {
	return historyCacheKeyPrefix + drawingID + ":history"
}

func (c *historyCache) get(ctx context.Context, drawingID string) ([]entity.DrawingVersion, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, historyKey(drawingID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("history cache read failed", zap.String("drawing_id", drawingID), zap.Error(err))
		}
		return nil, false
	}
	var versions []entity.DrawingVersion
	if err := json.Unmarshal(raw, &versions); err != nil {
		c.logger.Warn("history cache entry corrupt", zap.String("drawing_id", drawingID), zap.Error(err))
		return nil, false
	}
	return versions, true
}

func (c *historyCache) set(ctx context.Context, drawingID string, versions []entity.DrawingVersion) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(versions)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, historyKey(drawingID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("history cache write failed", zap.String("drawing_id", drawingID), zap.Error(err))
	}
}

func (c *historyCache) invalidate(ctx context.Context, drawingID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, historyKey(drawingID)).Err(); err != nil {
		c.logger.Warn("history cache invalidate failed", zap.String("drawing_id", drawingID), zap.Error(err))
	}
}
