package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modqueue/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen lets the request through when Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed answers 503 when Redis is unavailable.
	FailClosed
)

var errNoRateLimitStore = errors.New("rate limit store not configured")

// CheckRateLimit counts one hit for id on resource and reports whether it is
// within limit for the current window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, errNoRateLimitStore
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}

// SessionOrIP keys a request by its :sid route parameter, falling back to the client IP.
func SessionOrIP(c *fiber.Ctx) string {
	if sid := c.Params("sid"); sid != "" {
		return "session:" + sid
	}
	return "ip:" + c.IP()
}

// RateLimit enforces limit requests per window for resource, keyed by key.
// It fails open.
func RateLimit(rdb *redis.Client, resource string, limit int, window time.Duration, key func(*fiber.Ctx) string) fiber.Handler {
	return RateLimitWithPolicy(rdb, resource, limit, window, key, FailOpen)
}

// RateLimitWithPolicy is RateLimit with an explicit policy for store failures.
// A non-positive limit disables the check.
func RateLimitWithPolicy(
	rdb *redis.Client, resource string, limit int, window time.Duration, key func(*fiber.Ctx) string, policy FailPolicy,
) fiber.Handler {
	if key == nil {
		key = SessionOrIP
	}
	return func(c *fiber.Ctx) error {
		if limit <= 0 {
			return c.Next()
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, key(c), limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, rejecting",
					slog.String("resource", resource),
					slog.String("error", err.Error()))
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					models.NewInternalError(fmt.Errorf("rate limit unavailable: %w", err)))
			}
			return c.Next()
		}

		if !allowed {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError(resource))
		}
		return c.Next()
	}
}
