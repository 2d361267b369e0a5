package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds owner's token.
// KEYS[1] = lock key
// ARGV[1] = owner
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock shares the run lock between processes through Redis.
type RedisRunLock struct {
	client *redis.Client
	key    string
}

// NewRedisRunLock creates a lock backed by Redis.
func NewRedisRunLock(addr, password string, db int) *RedisRunLock {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRunLock{client: rdb, key: "capitolwatch:lock:" + runLockName}
}

func (l *RedisRunLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis run lock: %w", err)
	}
	return ok, nil
}

func (l *RedisRunLock) Release(ctx context.Context, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, owner).Err(); err != nil {
		return fmt.Errorf("redis run lock release: %w", err)
	}
	return nil
}

func (l *RedisRunLock) Close() error {
	return l.client.Close()
}
