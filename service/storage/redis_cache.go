package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ArgbRelay/module/relay/model"
	errs "ArgbRelay/tools/errs"

	"github.com/redis/go-redis/v9"
)

// RedisAuthCache keeps auth contexts as JSON strings with a redis TTL.
type RedisAuthCache struct {
	rdb *redis.Client
}

func NewRedisAuthCache(rdb *redis.Client) *RedisAuthCache {
	return &RedisAuthCache{rdb: rdb}
}

func (c *RedisAuthCache) Set(ctx context.Context, clientID string, ac model.AuthContext, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, clientID)
	}
	b, err := json.Marshal(ac)
	if err != nil {
		return errs.WrapMsg(err, "marshal auth context", "client", clientID)
	}
	if err := c.rdb.Set(ctx, AuthKey(clientID), b, ttl).Err(); err != nil {
		return errs.WrapMsg(err, "redis set", "key", AuthKey(clientID))
	}
	return nil
}

func (c *RedisAuthCache) Get(ctx context.Context, clientID string) (model.AuthContext, bool, error) {
	b, err := c.rdb.Get(ctx, AuthKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.AuthContext{}, false, nil
	}
	if err != nil {
		return model.AuthContext{}, false, errs.WrapMsg(err, "redis get", "key", AuthKey(clientID))
	}
	var ac model.AuthContext
	if err := json.Unmarshal(b, &ac); err != nil {
		return model.AuthContext{}, false, errs.WrapMsg(err, "unmarshal auth context", "client", clientID)
	}
	return ac, true, nil
}

func (c *RedisAuthCache) Delete(ctx context.Context, clientID string) error {
	if err := c.rdb.Del(ctx, AuthKey(clientID)).Err(); err != nil {
		return errs.WrapMsg(err, "redis del", "key", AuthKey(clientID))
	}
	return nil
}

func (c *RedisAuthCache) Close() error {
	return c.rdb.Close()
}
