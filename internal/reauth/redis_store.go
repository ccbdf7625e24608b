package reauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrStoreUnavailable = errors.New("challenge store unavailable")

// RedisStore keeps challenges behind a shared TTL-capable cache, making the
// step-up flow safe for multi-instance deployments. Logical expiry lives in
// ExpiresAt and is classified by the caller; the Redis TTL runs a retention
// window longer, so a just-expired challenge still reads back as expired
// instead of vanishing into "not found".
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// expiredRetention is how long a challenge stays readable past ExpiresAt.
const expiredRetention = time.Minute

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "reauth"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) challengeKey(accountID uuid.UUID) string {
	return s.prefix + ":challenge:" + accountID.String()
}

func (s *RedisStore) failureKey(accountID uuid.UUID) string {
	return s.prefix + ":pwfail:" + accountID.String()
}

func (s *RedisStore) Save(ctx context.Context, ch *Challenge) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	ttl := time.Until(ch.ExpiresAt) + expiredRetention
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.challengeKey(ch.AccountID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, accountID uuid.UUID) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.challengeKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *RedisStore) Delete(ctx context.Context, accountID uuid.UUID) error {
	if err := s.redis.Del(ctx, s.challengeKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) IncrementPasswordFailures(ctx context.Context, accountID uuid.UUID, window time.Duration) (int, error) {
	key := s.failureKey(accountID)
	n, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 1 {
		if err := s.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return int(n), nil
}

func (s *RedisStore) ResetPasswordFailures(ctx context.Context, accountID uuid.UUID) error {
	if err := s.redis.Del(ctx, s.failureKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
