package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "contact-session:"

// RedisStore is the shared-state driver for multi-replica deployments.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates the Redis driver. A non-positive ttl falls back to
// DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, ErrInvalidConfig
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) key(id string) string { return redisKeyPrefix + id }

// Get implements Store. The TTL is refreshed on read so an active dialogue
// does not expire mid-form.
func (s *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st State
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, err
	}

	_ = s.client.Expire(ctx, s.key(id), s.ttl).Err()
	return &st, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, st *State) error {
	now := time.Now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now

	val, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(st.ID), val, s.ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
