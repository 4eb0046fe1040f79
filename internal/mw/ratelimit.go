package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdleTTL is how long an unused caller bucket is kept.
const DefaultLimiterIdleTTL = 10 * time.Minute

// KeyedRateLimiter stores a rate limiter per caller key. Buckets not used
// for the idle TTL are evicted.
type KeyedRateLimiter struct {
	keys *cache.Cache
	mu   sync.Mutex
	r    rate.Limit
	b    int
}

// NewKeyedRateLimiter creates a new KeyedRateLimiter. A non-positive idle
// falls back to DefaultLimiterIdleTTL.
func NewKeyedRateLimiter(r rate.Limit, b int, idle time.Duration) *KeyedRateLimiter {
	if idle <= 0 {
		idle = DefaultLimiterIdleTTL
	}
	return &KeyedRateLimiter{
		keys: cache.New(idle, idle),
		r:    r,
		b:    b,
	}
}

// GetLimiter returns the rate limiter for key, creating it on first use.
// Every lookup restarts the key's idle timer.
func (l *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.keys.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
	}
	l.keys.SetDefault(key, limiter)
	return limiter.(*rate.Limiter)
}

// Len returns the number of buckets currently held, expired ones included
// until the next cleanup.
func (l *KeyedRateLimiter) Len() int {
	return l.keys.ItemCount()
}

// ClientIPKey identifies the caller by its address.
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// OperatorKey identifies the caller by the operator header. Anonymous
// requests yield no key and are limited by address only.
func OperatorKey(header string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		if id := c.GetHeader(header); id != "" {
			return "op:" + id
		}
		return ""
	}
}

// RateLimiter is a middleware that charges every applicable key of the
// request. The request passes only if each key's bucket has a token, so a
// caller cannot escape its address bucket by rotating operator headers.
func RateLimiter(r rate.Limit, b int, keys ...func(*gin.Context) string) gin.HandlerFunc {
	limiter := NewKeyedRateLimiter(r, b, DefaultLimiterIdleTTL)
	return func(c *gin.Context) {
		for _, key := range keys {
			k := key(c)
			if k == "" {
				continue
			}
			if !limiter.GetLimiter(k).Allow() {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
				return
			}
		}
		c.Next()
	}
}
