package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nanogpt-proxy/api/utils/cache"
	"github.com/nanogpt-proxy/api/utils/response"
)

// BruteForceProtection tracks failed login attempts per IP in Redis and
// applies progressive lockouts.
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
	}
}

// CheckLock middleware rejects requests from locked-out IPs.
func (b *BruteForceProtection) CheckLock() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		lockKey := lockKeyFor(ip)

		locked, err := b.redisCache.Exists(c.Context(), lockKey)
		if err != nil {
			// If Redis is down, allow the request rather than lock
			// everyone out.
			return c.Next()
		}

		if locked {
			ttl, _ := b.redisCache.TTL(c.Context(), lockKey)
			retryAfter := int(ttl.Seconds())
			if retryAfter < 0 {
				retryAfter = 60
			}

			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// RecordFailedAttempt records a failed login attempt and applies progressive lockouts
func (b *BruteForceProtection) RecordFailedAttempt(c *fiber.Ctx, ip string) error {
	ctx := c.Context()
	attemptKey := attemptKeyFor(ip)

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

	return b.redisCache.Set(ctx, lockKeyFor(ip), "locked", lockDuration)
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(c *fiber.Ctx, ip string) error {
	return b.redisCache.Delete(c.Context(), attemptKeyFor(ip), lockKeyFor(ip))
}

// GetAttemptCount returns the current attempt count for an IP
func (b *BruteForceProtection) GetAttemptCount(c *fiber.Ctx, ip string) (int, error) {
	val, err := b.redisCache.Get(c.Context(), attemptKeyFor(ip))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var count int
	fmt.Sscanf(val, "%d", &count)
	return count, nil
}

// IsIPLocked checks if an IP is currently locked
func (b *BruteForceProtection) IsIPLocked(c *fiber.Ctx, ip string) (bool, error) {
	return b.redisCache.Exists(c.Context(), lockKeyFor(ip))
}

// ClearAttempts manually clears attempts and locks for an IP
func (b *BruteForceProtection) ClearAttempts(c *fiber.Ctx, ip string) error {
	return b.redisCache.Delete(c.Context(), attemptKeyFor(ip), lockKeyFor(ip))
}

func attemptKeyFor(ip string) string {
	return "brute_force:attempts:" + ip
}

func lockKeyFor(ip string) string {
	return "brute_force:lock:" + ip
}
