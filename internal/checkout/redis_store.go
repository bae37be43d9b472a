package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cache2k25/internal/dto"
)

const pendingKeyPrefix = "cache2k25:pending:"

// RedisStore shares pending drafts between CLI sessions; expiry is Redis TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient connects and pings with a short timeout.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func pendingKey(txnID string) string {
	return pendingKeyPrefix + txnID
}

func (r *RedisStore) Put(ctx context.Context, txnID string, draft dto.RegisterRequest, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode pending draft: %w", err)
	}
	return r.rdb.Set(ctx, pendingKey(txnID), raw, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, txnID string) (dto.RegisterRequest, error) {
	var draft dto.RegisterRequest
	raw, err := r.rdb.Get(ctx, pendingKey(txnID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return draft, ErrPendingNotFound
	}
	if err != nil {
		return draft, err
	}
	if err := json.Unmarshal(raw, &draft); err != nil {
		return draft, fmt.Errorf("decode pending draft: %w", err)
	}
	return draft, nil
}

func (r *RedisStore) Delete(ctx context.Context, txnID string) error {
	return r.rdb.Del(ctx, pendingKey(txnID)).Err()
}
