package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cloudprefix/ipranges/pkg/apiresponses"
	"github.com/cloudprefix/ipranges/pkg/metrics"
)

// Config holds rate limiter configuration
type Config struct {
	// Window is the fixed window duration; the counter resets entirely at
	// window boundaries
	Window time.Duration
	// Max is the number of requests allowed per client per window
	Max int
	// SweepInterval is how often to remove expired windows
	SweepInterval time.Duration
	// ExcludeSuccessful uncounts requests whose response was < 400
	ExcludeSuccessful bool
	// ExcludeFailed uncounts requests whose response was >= 400
	ExcludeFailed bool
	// Exempt classifies callers that bypass the limiter entirely. Nil means
	// nobody is exempt.
	Exempt ExemptFunc
	// KeyFunc derives the client key from the request. Nil uses ClientKey.
	KeyFunc func(r *http.Request) string
}

// DefaultConfig returns the default config for the gated read endpoints:
// 10 requests per minute per client, swept every 5 minutes.
func DefaultConfig() Config {
	return Config{
		Window:        time.Minute,
		Max:           10,
		SweepInterval: 5 * time.Minute,
	}
}

// Decision is the outcome of admitting one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Window     time.Duration
}

// entry holds the request count for one client's current window
type entry struct {
	count   int
	resetAt time.Time
}

// Limiter implements per-client fixed-window admission with automatic cleanup
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	done    chan struct{}
	now     func() time.Time
}

// New creates a new fixed-window limiter with the given configuration
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}

	l := &Limiter{
		entries: make(map[string]*entry),
		config:  cfg,
		done:    make(chan struct{}),
		now:     time.Now,
	}

	// Start sweep goroutine
	go l.sweep()

	return l
}

// Allow admits or rejects one request for the given client key. An expired
// window is replaced with a fresh one, never reused with its stale count.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists || !now.Before(e.resetAt) {
		e = &entry{resetAt: now.Add(l.config.Window)}
		l.entries[key] = e
	}

	d := Decision{
		Limit:   l.config.Max,
		ResetAt: e.resetAt,
		Window:  l.config.Window,
	}
	if e.count >= l.config.Max {
		d.Allowed = false
		d.Remaining = 0
		d.RetryAfter = e.resetAt.Sub(now)
		return d
	}
	e.count++
	d.Allowed = true
	d.Remaining = l.config.Max - e.count
	return d
}

// Uncount decrements the client's current window by one, never below zero.
// Used when the route excludes successful or failed responses from counting.
func (l *Limiter) Uncount(key string) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists || !now.Before(e.resetAt) {
		return
	}
	if e.count > 0 {
		e.count--
	}
}

// Forget drops the client's window entirely, resetting its count.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Middleware returns a Gin middleware that applies fixed-window rate limiting.
// Every gated response carries the standard X-RateLimit headers; a rejection
// additionally carries Retry-After and a 429 status.
func (l *Limiter) Middleware() gin.HandlerFunc {
	keyFn := l.config.KeyFunc
	if keyFn == nil {
		keyFn = ClientKey
	}
	return func(c *gin.Context) {
		if l.config.Exempt != nil && l.config.Exempt(c.Request) {
			metrics.RateLimitDecisions.WithLabelValues("exempt").Inc()
			c.Next()
			return
		}

		key := keyFn(c.Request)
		d := l.Allow(key)

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", i64toa(d.ResetAt.Unix()))
		h.Set("X-RateLimit-Window", itoa(int(d.Window.Seconds())))

		if !d.Allowed {
			metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
			apiresponses.RespondRateLimited(c, int(d.RetryAfter.Seconds()+0.5))
			c.Abort()
			return
		}

		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		c.Next()

		status := c.Writer.Status()
		if (l.config.ExcludeSuccessful && status < http.StatusBadRequest) ||
			(l.config.ExcludeFailed && status >= http.StatusBadRequest) {
			l.Uncount(key)
		}
	}
}

// Stop stops the sweep goroutine
func (l *Limiter) Stop() {
	close(l.done)
}

// sweep periodically removes expired windows
func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweepExpired()
		}
	}
}

// sweepExpired removes windows whose reset time has passed, bounding memory
// regardless of traffic shape
func (l *Limiter) sweepExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
		}
	}
	metrics.RateLimitTrackedClients.Set(float64(len(l.entries)))
}

// Len returns the current number of tracked clients (for testing/metrics)
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Config returns a copy of the current configuration (for testing)
func (l *Limiter) Config() Config {
	return l.config
}
