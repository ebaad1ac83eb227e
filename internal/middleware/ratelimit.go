package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jengzang/watchdog-backend-go/pkg/response"
)

// idleTTL is how long a client limiter survives without requests
const idleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a new rate limiter allowing rps requests per second per IP
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// Allow checks if a request from the given IP is allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[ip]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = client
	}
	client.lastSeen = now

	return client.limiter.AllowN(now, 1)
}

// Cleanup removes clients idle for longer than idleTTL
func (rl *RateLimiter) Cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, client := range rl.clients {
		if now.Sub(client.lastSeen) > idleTTL {
			delete(rl.clients, ip)
		}
	}
}

// cleanupLoop runs Cleanup until stop is closed
func (rl *RateLimiter) cleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(idleTTL)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.Cleanup(now)
		case <-stop:
			return
		}
	}
}

// RateLimit middleware limits requests per IP. A non-positive rps disables limiting.
// The cleanup goroutine exits when stop is closed.
func RateLimit(rps float64, burst int, stop <-chan struct{}) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	limiter := NewRateLimiter(rps, burst)
	go limiter.cleanupLoop(stop)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			return
		}

		c.Next()
	}
}
