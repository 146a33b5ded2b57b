package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/config"
)

// RateLimit is the per-key attempt counter.
type RateLimit struct {
	Count      int
	ResetAt    time.Time
	LastAccess time.Time
	Blocked    bool
	BlockUntil time.Time
}

// RateLimitConfig allows MaxRequests per TimeWindow and blocks the key for
// BlockDuration once exceeded.
type RateLimitConfig struct {
	MaxRequests   int
	TimeWindow    time.Duration
	BlockDuration time.Duration
}

// RateLimiter guards sensitive endpoints (login, registration, password reset).
type RateLimiter struct {
	store map[string]*RateLimit
	mutex sync.Mutex
	now   func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		store: make(map[string]*RateLimit),
		now:   time.Now,
	}
}

// LoginConfig, RegisterConfig and PasswordResetConfig read the limits from cfg.
func LoginConfig(cfg *config.Config) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:   cfg.LoginRateLimitMaxAttempts,
		TimeWindow:    time.Duration(cfg.LoginRateLimitWindowSeconds) * time.Second,
		BlockDuration: time.Duration(cfg.LoginRateLimitBlockMinutes) * time.Minute,
	}
}

func RegisterConfig(cfg *config.Config) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:   cfg.RegisterRateLimitMaxAttempts,
		TimeWindow:    time.Duration(cfg.RegisterRateLimitWindowHours) * time.Hour,
		BlockDuration: time.Duration(cfg.RegisterRateLimitBlockHours) * time.Hour,
	}
}

func PasswordResetConfig(cfg *config.Config) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:   cfg.PasswordResetMaxAttempts,
		TimeWindow:    time.Duration(cfg.PasswordResetWindowMinutes) * time.Minute,
		BlockDuration: time.Duration(cfg.PasswordResetBlockHours) * time.Hour,
	}
}

// Run drops stale records every interval until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, limit := range rl.store {
		if limit.Blocked && now.Before(limit.BlockUntil) {
			continue
		}
		if now.Sub(limit.LastAccess) > 24*time.Hour {
			delete(rl.store, key)
		}
	}
}

func (rl *RateLimiter) isAllowed(key string, config RateLimitConfig) bool {
	if config.MaxRequests <= 0 {
		return true
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	limit, exists := rl.store[key]

	if !exists {
		rl.store[key] = &RateLimit{
			Count:      1,
			ResetAt:    now.Add(config.TimeWindow),
			LastAccess: now,
		}
		return true
	}

	limit.LastAccess = now

	if limit.Blocked {
		if now.Before(limit.BlockUntil) {
			return false
		}
		limit.Blocked = false
		limit.Count = 1
		limit.ResetAt = now.Add(config.TimeWindow)
		return true
	}

	if now.After(limit.ResetAt) {
		limit.Count = 1
		limit.ResetAt = now.Add(config.TimeWindow)
		return true
	}

	if limit.Count >= config.MaxRequests {
		limit.Blocked = true
		limit.BlockUntil = now.Add(config.BlockDuration)
		return false
	}

	limit.Count++
	return true
}

// Limit throttles requests per client IP under the given key prefix.
func (rl *RateLimiter) Limit(prefix, message string, config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.isAllowed(prefix+":"+c.ClientIP(), config) {
			response.Abort(c, http.StatusTooManyRequests, "RATE_LIMITED", message)
			return
		}
		c.Next()
	}
}
