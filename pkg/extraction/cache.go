package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
)

// KV is the subset of a Redis client the status cache uses.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// StatusCache keeps finished runs in Redis so status polling does not hit
// Postgres. Only terminal runs are cached.
type StatusCache struct {
	kv  KV
	ttl time.Duration
}

func NewStatusCache(kv KV, ttl time.Duration) *StatusCache {
	return &StatusCache{kv: kv, ttl: ttl}
}

func statusKey(id string) string {
	return "extraction:run:" + id
}

func (c *StatusCache) Get(ctx context.Context, id string) (*Run, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.kv.Get(ctx, statusKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("run_id", id).Warn("run status cache read failed")
		}
		return nil, false
	}
	var run Run
	if err := json.Unmarshal([]byte(raw), &run); err != nil {
		return nil, false
	}
	return &run, true
}

func (c *StatusCache) Put(ctx context.Context, run *Run) {
	if c == nil || run == nil || !run.Terminal() {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, statusKey(run.ID), data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("run_id", run.ID).Warn("run status cache write failed")
	}
}
