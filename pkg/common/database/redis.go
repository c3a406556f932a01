package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns the shared client backing the ontology lookup cache and
// the run status cache. A failed ping is logged, not fatal; callers degrade
// to uncached operation.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Load()
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		if err := PingRedis(context.Background()); err != nil {
			logger.Log.WithError(err).Warn("Redis unavailable, caches disabled until it recovers")
		} else {
			logger.Log.Info("Connected to Redis")
		}
	})

	return redisClient
}

func PingRedis(ctx context.Context) error {
	if redisClient == nil {
		return fmt.Errorf("redis client not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return redisClient.Ping(ctx).Err()
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
