package ontology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
)

const missMarker = "-"

// KV is the subset of a Redis client the cache uses; *redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cache is a read-through Redis decorator. Misses are cached too so unknown
// values are not re-queried on every row. Redis failures degrade to direct
// lookups.
type Cache struct {
	next Lookup
	kv   KV
	ttl  time.Duration
}

func NewCache(next Lookup, kv KV, ttl time.Duration) *Cache {
	return &Cache{next: next, kv: kv, ttl: ttl}
}

func resolveKey(resource, version, raw string) string {
	return fmt.Sprintf("ontology:%s:%s:term:%s", strings.ToLower(resource), version, normalise(raw))
}

func containsKey(resource, id string) string {
	return fmt.Sprintf("ontology:%s:id:%s", strings.ToLower(resource), strings.ToUpper(strings.TrimSpace(id)))
}

func (c *Cache) Resolve(ctx context.Context, resource, version, raw string) (Term, error) {
	key := resolveKey(resource, version, raw)

	cached, err := c.kv.Get(ctx, key).Result()
	switch {
	case err == nil && cached == missMarker:
		return Term{}, ErrNotFound
	case err == nil:
		var t Term
		if jsonErr := json.Unmarshal([]byte(cached), &t); jsonErr == nil {
			return t, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.Log.WithError(err).WithField("key", key).Warn("ontology cache read failed")
	}

	term, err := c.next.Resolve(ctx, resource, version, raw)
	switch {
	case errors.Is(err, ErrNotFound):
		c.store(ctx, key, missMarker)
	case err == nil:
		if payload, jsonErr := json.Marshal(term); jsonErr == nil {
			c.store(ctx, key, string(payload))
		}
	}
	return term, err
}

func (c *Cache) Contains(ctx context.Context, resource, id string) (bool, error) {
	key := containsKey(resource, id)

	cached, err := c.kv.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		logger.Log.WithError(err).WithField("key", key).Warn("ontology cache read failed")
	}

	ok, err := c.next.Contains(ctx, resource, id)
	if err != nil {
		return false, err
	}
	value := "0"
	if ok {
		value = "1"
	}
	c.store(ctx, key, value)
	return ok, nil
}

func (c *Cache) store(ctx context.Context, key, value string) {
	if err := c.kv.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("ontology cache write failed")
	}
}
