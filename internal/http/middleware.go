package http

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// The API serves JSON and cover images only
		c.Header("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")

		c.Header("Permissions-Policy",
			"camera=(), "+
				"geolocation=(), "+
				"microphone=(), "+
				"payment=(), "+
				"usb=()")

		c.Next()
	}
}

// RateLimiter caps model-backed requests per client in a fixed window.
// Each request is a provider call, so this protects the configured quota.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*windowRecord
	limit    int
	window   time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

type windowRecord struct {
	count int
	start time.Time
}

// NewRateLimiter allows limit requests per window for each client. A limit
// of zero or less returns nil, which disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}

	rl := &RateLimiter{
		clients: make(map[string]*windowRecord),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop stops the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow records a request from client. When the window is full it reports
// how long until the next request is accepted.
func (rl *RateLimiter) Allow(client string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, ok := rl.clients[client]
	if !ok || now.Sub(record.start) >= rl.window {
		rl.clients[client] = &windowRecord{count: 1, start: now}
		return true, 0
	}
	if record.count >= rl.limit {
		return false, record.start.Add(rl.window).Sub(now)
	}
	record.count++
	return true, 0
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for client, record := range rl.clients {
		if now.Sub(record.start) >= rl.window {
			delete(rl.clients, client)
		}
	}
}

// Middleware rejects requests over the limit with 429. A nil limiter lets
// everything through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}

		allowed, retryAfter := rl.Allow(c.ClientIP())
		if !allowed {
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many model requests, retry later",
				Code:  codeRateLimited,
			})
			return
		}

		c.Next()
	}
}
