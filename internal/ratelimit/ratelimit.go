// Package ratelimit provides a per-client token bucket for the HTTP API.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config sets the refill rate and bucket depth.
type Config struct {
	// RequestsPerSecond is the sustained per-client rate.
	RequestsPerSecond float64
	// Burst is the bucket capacity: how far a client may briefly exceed
	// the sustained rate.
	Burst int
	// SweepInterval is how often idle buckets are dropped.
	SweepInterval time.Duration
}

// DefaultConfig allows one request per second with bursts of ten.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 1,
		Burst:             10,
		SweepInterval:     time.Minute,
	}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter holds one token bucket per client key.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

// New starts a limiter and its background sweep.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop ends the background sweep.
func (l *Limiter) Stop() {
	close(l.stop)
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// A bucket idle for two sweep intervals is full again anyway.
			cutoff := time.Now().Add(-2 * l.cfg.SweepInterval)
			l.mu.Lock()
			for key, b := range l.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Allow takes one token from key's bucket, reporting whether one was
// available.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{
			tokens:   float64(l.cfg.Burst) - 1,
			lastSeen: now,
		}
		return true
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.cfg.RequestsPerSecond
	if max := float64(l.cfg.Burst); b.tokens > max {
		b.tokens = max
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Middleware limits requests per client IP, answering 429 when the
// bucket is empty.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please slow down.",
				"retry_after": 1,
			})
			return
		}
		c.Next()
	}
}
