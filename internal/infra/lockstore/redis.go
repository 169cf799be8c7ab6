package lockstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

// ErrNotHolder is returned when a release names a requester that does
// not hold the lock.
var ErrNotHolder = errors.New("lock held by another user")

// RedisLockStore is the authoritative file lock shared across relay
// processes. Each lock is a redis key with a TTL plus an entry in a
// sorted set scored by acquisition time; the sorted set drives the
// staleness sweep. The relay's in-process lock table only echoes this
// state — arbitration across processes happens here.
type RedisLockStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logrus.Entry
}

// NewRedisLockStore builds the store. ttl bounds how long an abandoned
// lock survives before the sweep clears it.
func NewRedisLockStore(client *redis.Client, prefix string, ttl time.Duration, logger *logrus.Logger) *RedisLockStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisLockStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    logger.WithField("component", "lockstore"),
	}
}

func (s *RedisLockStore) lockKey(key domain.LockKey) string {
	return s.prefix + "lock:" + key.String()
}

func (s *RedisLockStore) indexKey() string {
	return s.prefix + "lock:index"
}

// Acquire grants the lock if unheld, or refreshes it for an idempotent
// re-acquire by the current holder. A conflicting request reports the
// holder without error.
func (s *RedisLockStore) Acquire(ctx context.Context, key domain.LockKey, holder string) (bool, string, error) {
	ok, err := s.client.SetNX(ctx, s.lockKey(key), holder, s.ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("lock acquire: %w", err)
	}
	if !ok {
		current, err := s.client.Get(ctx, s.lockKey(key)).Result()
		if err != nil && err != redis.Nil {
			return false, "", fmt.Errorf("lock acquire holder check: %w", err)
		}
		if current != holder {
			return false, current, nil
		}
		// Same holder: treat as heartbeat.
		if err := s.client.Expire(ctx, s.lockKey(key), s.ttl).Err(); err != nil {
			return false, "", fmt.Errorf("lock refresh: %w", err)
		}
	}
	err = s.client.ZAdd(ctx, s.indexKey(), &redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: key.String(),
	}).Err()
	if err != nil {
		return false, "", fmt.Errorf("lock index update: %w", err)
	}
	return true, holder, nil
}

// Release clears the lock. An empty requester clears unconditionally;
// otherwise only the holder may release.
func (s *RedisLockStore) Release(ctx context.Context, key domain.LockKey, requester string) error {
	if requester != "" {
		current, err := s.client.Get(ctx, s.lockKey(key)).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock release holder check: %w", err)
		}
		if current != requester {
			return ErrNotHolder
		}
	}
	if err := s.client.Del(ctx, s.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("lock release: %w", err)
	}
	if err := s.client.ZRem(ctx, s.indexKey(), key.String()).Err(); err != nil {
		return fmt.Errorf("lock index remove: %w", err)
	}
	return nil
}

// Heartbeat refreshes the TTL and sweep score for the current holder.
func (s *RedisLockStore) Heartbeat(ctx context.Context, key domain.LockKey, holder string) error {
	current, err := s.client.Get(ctx, s.lockKey(key)).Result()
	if err == redis.Nil {
		return ErrNotHolder
	}
	if err != nil {
		return fmt.Errorf("lock heartbeat: %w", err)
	}
	if current != holder {
		return ErrNotHolder
	}
	if err := s.client.Expire(ctx, s.lockKey(key), s.ttl).Err(); err != nil {
		return fmt.Errorf("lock heartbeat refresh: %w", err)
	}
	return s.client.ZAdd(ctx, s.indexKey(), &redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: key.String(),
	}).Err()
}

// HolderOf returns the current holder, if any.
func (s *RedisLockStore) HolderOf(ctx context.Context, key domain.LockKey) (string, bool, error) {
	current, err := s.client.Get(ctx, s.lockKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lock holder lookup: %w", err)
	}
	return current, true, nil
}

// UnlockStale removes every lock whose acquisition is older than the
// cutoff and returns the released keys so the relay can notify the
// affected projects. This is the safety net for holders that vanished
// without releasing.
func (s *RedisLockStore) UnlockStale(ctx context.Context, olderThan time.Duration) ([]domain.LockKey, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	members, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("stale lock scan: %w", err)
	}

	var released []domain.LockKey
	for _, member := range members {
		key, err := domain.ParseLockKey(member)
		if err != nil {
			s.log.WithError(err).Warn("Skipping malformed lock index entry")
			_ = s.client.ZRem(ctx, s.indexKey(), member).Err()
			continue
		}
		if err := s.client.Del(ctx, s.lockKey(key)).Err(); err != nil {
			s.log.WithError(err).WithField("lock", member).Warn("Failed to delete stale lock")
			continue
		}
		if err := s.client.ZRem(ctx, s.indexKey(), member).Err(); err != nil {
			s.log.WithError(err).WithField("lock", member).Warn("Failed to prune lock index")
		}
		released = append(released, key)
	}
	if len(released) > 0 {
		s.log.WithField("count", len(released)).Info("Unlocked stale file locks")
	}
	return released, nil
}
