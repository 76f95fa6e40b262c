package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/courseforge/api/utils/cache"
	"github.com/courseforge/api/utils/response"
)

// BruteForceProtection throttles repeated failed logins per IP using Redis
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
	}
}

// CheckAndRecordAttempt middleware rejects requests from locked-out IPs
func (b *BruteForceProtection) CheckAndRecordAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		lockKey := fmt.Sprintf("brute_force:lock:%s", ip)

		// Absent lock key, or Redis being down, must not block
		// legitimate logins
		if _, err := b.redisCache.Get(c.Context(), lockKey); err != nil {
			return c.Next()
		}

		ttl, _ := b.redisCache.TTL(c.Context(), lockKey)
		retryAfter := int(ttl.Seconds())
		if retryAfter < 0 {
			retryAfter = 60
		}

		c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
	}
}

// RecordFailedAttempt counts a failed login and applies progressive lockouts
func (b *BruteForceProtection) RecordFailedAttempt(c *fiber.Ctx, ip string) error {
	ctx := c.Context()
	attemptKey := fmt.Sprintf("brute_force:attempts:%s", ip)
	lockKey := fmt.Sprintf("brute_force:lock:%s", ip)

	attempts, err := b.redisCache.Increment(ctx, attemptKey)
	if err != nil {
		return nil
	}

	// 15 minute counting window
	if attempts == 1 {
		b.redisCache.Expire(ctx, attemptKey, 15*time.Minute)
	}

	var lockDuration time.Duration
	switch {
	case attempts >= 25:
		lockDuration = 24 * time.Hour
	case attempts >= 10:
		lockDuration = 1 * time.Hour
	case attempts >= 5:
		lockDuration = 2 * time.Minute
	default:
		return nil
	}

	return b.redisCache.Set(ctx, lockKey, "locked", lockDuration)
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(c *fiber.Ctx, ip string) error {
	ctx := c.Context()
	attemptKey := fmt.Sprintf("brute_force:attempts:%s", ip)
	lockKey := fmt.Sprintf("brute_force:lock:%s", ip)

	b.redisCache.Delete(ctx, attemptKey)
	b.redisCache.Delete(ctx, lockKey)

	return nil
}
