package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

type ipLimiters struct {
	r rate.Limit
	b int
	m sync.Map // ip → *ipLimiter
}

func (l *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	v, ok := l.m.Load(ip)
	if !ok {
		v, _ = l.m.LoadOrStore(ip, &ipLimiter{limiter: rate.NewLimiter(l.r, l.b)})
	}
	il := v.(*ipLimiter)
	il.lastSeen.Store(now.UnixNano())
	return il.limiter
}

// sweep drops limiters idle since before cutoff.
func (l *ipLimiters) sweep(cutoff time.Time) {
	l.m.Range(func(k, v any) bool {
		if v.(*ipLimiter).lastSeen.Load() < cutoff.UnixNano() {
			l.m.Delete(k)
		}
		return true
	})
}

// RateLimit provides per-IP token-bucket rate limiting.
// r = requests per second, b = burst size. Idle entries are swept until ctx is done.
func RateLimit(ctx context.Context, r rate.Limit, b int) gin.HandlerFunc {
	limiters := &ipLimiters{r: r, b: b}

	go func() {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				limiters.sweep(now.Add(-limiterIdleAfter))
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP(), time.Now()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
