package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Rate limiting for the credential-submitting endpoints (login, register,
// remember-me). Two implementations share one contract:
//
//   - RedisRateLimit counts per IP across all instances with INCR + EXPIRE.
//   - RateLimit keeps a per-process sliding window map, used when Redis is
//     not configured (single-instance deployments, tests).
//
// The app picks one at composition time based on config.

// redisKeyPrefix namespaces the per-IP counters in Redis.
const redisKeyPrefix = "rl:"

// RedisRateLimit returns middleware that limits requests per IP to
// maxRequests within the given window, with the counter shared across all
// backend instances. The first request in a window creates the key and sets
// its TTL. If Redis is unreachable the request is allowed through: losing
// rate limiting briefly beats turning every login into a 500.
func RedisRateLimit(rdb *redis.Client, name string, maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := fmt.Sprintf("%s%s:%s", redisKeyPrefix, name, c.RealIP())

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request",
					slog.String("limiter", name),
					slog.Any("error", err),
				)
				return next(c)
			}

			if count == 1 {
				if err := rdb.Expire(ctx, key, window).Err(); err != nil {
					slog.Warn("rate limiter expire failed",
						slog.String("limiter", name),
						slog.Any("error", err),
					)
				}
			}

			if count > int64(maxRequests) {
				return tooManyRequests(c)
			}
			return next(c)
		}
	}
}

// rateLimitEntry tracks request counts for a single IP within a time window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// RateLimit returns middleware that limits requests per IP to maxRequests
// within the given window duration, counting in process memory. Returns 429
// when exceeded.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	var mu sync.Mutex
	entries := make(map[string]*rateLimitEntry)

	// Background cleanup of expired entries every minute.
	go func() {
		for {
			time.Sleep(time.Minute)
			mu.Lock()
			now := time.Now()
			for ip, entry := range entries {
				if now.Sub(entry.windowStart) > window*2 {
					delete(entries, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			entry, exists := entries[ip]
			if !exists || now.Sub(entry.windowStart) > window {
				entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
				mu.Unlock()
				return next(c)
			}

			entry.count++
			if entry.count > maxRequests {
				mu.Unlock()
				return tooManyRequests(c)
			}
			mu.Unlock()
			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{
		"error":   "Too Many Requests",
		"message": "Rate limit exceeded. Please try again later.",
	})
}
