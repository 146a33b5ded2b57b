package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"nko-map-backend/api-server/response"
)

// Throttle is a per-IP token bucket applied to the whole API.
type Throttle struct {
	limit   rate.Limit
	burst   int
	window  time.Duration
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle allows requestsPerMinute on average with bursts of up to
// burst requests. It returns nil, which disables throttling, when
// requestsPerMinute is not positive.
func NewThrottle(requestsPerMinute, burst int) *Throttle {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = requestsPerMinute / 10
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		window:  5 * time.Minute,
		clients: make(map[string]*clientLimiter),
	}
}

func (t *Throttle) Handler() gin.HandlerFunc {
	if t == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !t.getLimiter(c.ClientIP()).Allow() {
			response.Abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "Слишком много запросов, попробуйте позже")
			return
		}
		c.Next()
	}
}

func (t *Throttle) getLimiter(key string) *rate.Limiter {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(t.limit, t.burst)
	t.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	t.cleanupLocked(now)
	return limiter
}

func (t *Throttle) cleanupLocked(now time.Time) {
	for key, entry := range t.clients {
		if now.Sub(entry.lastSeen) > t.window {
			delete(t.clients, key)
		}
	}
}
