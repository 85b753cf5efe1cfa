package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var (
	rlMu      sync.Mutex
	visitors  = map[string]*visitor{}
	window    = 10 * time.Second
	capacity  = 5
	idleTTL   = 10 * time.Minute
	lastPrune time.Time
)

// SetRateLimitConfig allows capacity requests per window per client, refilled
// evenly over the window. Existing buckets are reset.
func SetRateLimitConfig(win time.Duration, cap int) {
	if win <= 0 {
		win = 10 * time.Second
	}
	if cap <= 0 {
		cap = 1
	}
	rlMu.Lock()
	window = win
	capacity = cap
	visitors = map[string]*visitor{}
	lastPrune = time.Time{}
	rlMu.Unlock()
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

// clientKey is the client IP. Session ids are chosen by the caller, so they
// never scope a bucket.
func clientKey(c *gin.Context) string {
	return clientIP(c)
}

func limiterFor(key string, now time.Time) *rate.Limiter {
	rlMu.Lock()
	defer rlMu.Unlock()
	v := visitors[key]
	if v == nil {
		every := rate.Every(window / time.Duration(capacity))
		v = &visitor{lim: rate.NewLimiter(every, capacity)}
		visitors[key] = v
		if now.Sub(lastPrune) > idleTTL/2 {
			lastPrune = now
			for k, old := range visitors {
				if now.Sub(old.lastSeen) > idleTTL && k != key {
					delete(visitors, k)
				}
			}
		}
	}
	v.lastSeen = now
	return v.lim
}

// RateLimit allows capacity requests per window per client IP.
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := limiterFor(clientKey(c), time.Now())
		if !lim.Allow() {
			rlMu.Lock()
			retry := int(window.Seconds()) / capacity
			rlMu.Unlock()
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		c.Next()
	}
}
