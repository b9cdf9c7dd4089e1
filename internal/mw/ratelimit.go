package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// SessionHeader carries the session token of an authenticated request.
const SessionHeader = "X-Session-Token"

// ClientRateLimiter keeps a rate limiter per client. Limiters of clients that
// go quiet expire from the cache.
type ClientRateLimiter struct {
	clients *cache.Cache
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int, idle time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: cache.New(idle, idle*2),
		r:       r,
		b:       b,
	}
}

// GetLimiter returns the rate limiter for a client, creating it on first use.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, found := l.clients.Get(key); found {
		l.clients.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.clients.SetDefault(key, limiter)
	return limiter
}

// RateLimiter is a middleware for per-IP rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return limit(NewClientRateLimiter(r, b, 10*time.Minute), func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}

// SessionRateLimiter limits each session on its own. It keys on the session
// token, so it must run after the token has been validated.
func SessionRateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return limit(NewClientRateLimiter(r, b, 10*time.Minute), func(c *gin.Context) string {
		return "session:" + c.GetHeader(SessionHeader)
	})
}

func limit(limiter *ClientRateLimiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.GetLimiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
