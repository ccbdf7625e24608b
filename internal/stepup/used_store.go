// Package stepup validates reauthorization capabilities before sensitive
// account mutations.
package stepup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsedStore is the capability consumption ledger. Consume returns false when
// the jti was already spent; entries only need to outlive the capability's
// own expiry.
type UsedStore interface {
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// MemoryUsedStore is the single-instance ledger. Spent entries are swept
// once their ttl lapses.
type MemoryUsedStore struct {
	mu   sync.Mutex
	used map[string]time.Time

	now func() time.Time
}

func NewMemoryUsedStore(now func() time.Time) *MemoryUsedStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryUsedStore{
		used: make(map[string]time.Time),
		now:  now,
	}
}

func (s *MemoryUsedStore) Consume(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.used {
		if now.After(exp) {
			delete(s.used, id)
		}
	}
	if _, spent := s.used[jti]; spent {
		return false, nil
	}
	s.used[jti] = now.Add(ttl)
	return true, nil
}

// RedisUsedStore is the shared ledger for multi-instance deployments.
// SET NX makes consumption atomic across replicas.
type RedisUsedStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisUsedStore(client redis.UniversalClient, prefix string) *RedisUsedStore {
	if prefix == "" {
		prefix = "stepup"
	}
	return &RedisUsedStore{redis: client, prefix: prefix}
}

func (s *RedisUsedStore) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.prefix+":used:"+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("capability ledger unavailable: %w", err)
	}
	return ok, nil
}
