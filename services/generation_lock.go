package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courseforge/api/utils/cache"
)

// DefaultLockTTL bounds how long a generation lock can be held; a crashed
// worker must not block an artifact forever.
const DefaultLockTTL = 2 * time.Minute

// ReleaseFunc releases an acquired generation lock.
type ReleaseFunc func()

// ArtifactLock serializes generation per (artifact kind, entity id) so two
// concurrent cache misses cannot both call the model and double-bill tokens.
// Acquire returns ErrGenerationInProgress when the lock is already held.
type ArtifactLock interface {
	Acquire(ctx context.Context, kind string, id uint) (ReleaseFunc, error)
}

// RedisArtifactLock implements ArtifactLock with SetNX, so the exclusion
// holds across all API instances sharing the Redis.
type RedisArtifactLock struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewRedisArtifactLock creates a Redis-backed generation lock
func NewRedisArtifactLock(redisCache *cache.RedisCache) *RedisArtifactLock {
	return &RedisArtifactLock{
		cache: redisCache,
		ttl:   DefaultLockTTL,
	}
}

func lockKey(kind string, id uint) string {
	return fmt.Sprintf("genlock:%s:%d", kind, id)
}

// Acquire takes the lock for one artifact or fails with ErrGenerationInProgress
func (l *RedisArtifactLock) Acquire(ctx context.Context, kind string, id uint) (ReleaseFunc, error) {
	key := lockKey(kind, id)

	ok, err := l.cache.SetNX(ctx, key, "locked", l.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	if !ok {
		return nil, ErrGenerationInProgress
	}

	return func() {
		// Release outlives the request context
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.cache.Delete(releaseCtx, key)
	}, nil
}

// MemoryArtifactLock is the in-process fallback used when Redis is not
// configured, and in tests. Correct only for a single API instance.
type MemoryArtifactLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryArtifactLock creates an in-process generation lock
func NewMemoryArtifactLock() *MemoryArtifactLock {
	return &MemoryArtifactLock{
		held: make(map[string]struct{}),
	}
}

// Acquire takes the lock for one artifact or fails with ErrGenerationInProgress
func (l *MemoryArtifactLock) Acquire(ctx context.Context, kind string, id uint) (ReleaseFunc, error) {
	key := lockKey(kind, id)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[key]; taken {
		return nil, ErrGenerationInProgress
	}
	l.held[key] = struct{}{}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
