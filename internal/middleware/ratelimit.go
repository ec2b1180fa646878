package middleware

import (
	"container/list"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig configures token bucket limiting. With PerClient set each
// remote host gets its own bucket; otherwise one bucket is shared.
type RateLimitConfig struct {
	Enabled   bool
	RPS       float64
	Burst     int
	PerClient bool
}

// maxClientBuckets bounds the per-client table. The least recently seen
// client is evicted when a new one arrives at the cap.
const maxClientBuckets = 10000

// RateLimitMiddleware rejects requests beyond the configured rate with 429.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RPS <= 0 || cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	limiter := newLimiter(cfg, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientKey(r)) {
				retry := int(limiter.retryAfter().Seconds() + 0.999)
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type limiter struct {
	mu         sync.Mutex
	rate       float64
	burst      float64
	perClient  bool
	now        func() time.Time
	maxClients int
	shared     *tokenBucket
	clients    map[string]*list.Element
	recent     *list.List
}

type clientBucket struct {
	key    string
	bucket *tokenBucket
}

func newLimiter(cfg RateLimitConfig, now func() time.Time) *limiter {
	l := &limiter{
		rate:       cfg.RPS,
		burst:      float64(cfg.Burst),
		perClient:  cfg.PerClient,
		now:        now,
		maxClients: maxClientBuckets,
	}
	if l.perClient {
		l.clients = make(map[string]*list.Element)
		l.recent = list.New()
	} else {
		l.shared = l.newBucket()
	}
	return l
}

func (l *limiter) newBucket() *tokenBucket {
	return &tokenBucket{tokens: l.burst, last: l.now()}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.shared
	if l.perClient {
		b = l.clientBucket(key)
	}
	return b.take(l.now(), l.rate, l.burst)
}

// clientBucket returns the bucket for key, marking it most recently seen.
func (l *limiter) clientBucket(key string) *tokenBucket {
	if e, ok := l.clients[key]; ok {
		l.recent.MoveToFront(e)
		return e.Value.(*clientBucket).bucket
	}
	for l.recent.Len() >= l.maxClients {
		oldest := l.recent.Back()
		l.recent.Remove(oldest)
		delete(l.clients, oldest.Value.(*clientBucket).key)
	}
	b := l.newBucket()
	l.clients[key] = l.recent.PushFront(&clientBucket{key: key, bucket: b})
	return b
}

// retryAfter is the time until one token is available at the configured rate.
func (l *limiter) retryAfter() time.Duration {
	return time.Duration(float64(time.Second) / l.rate)
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

func (b *tokenBucket) refill(now time.Time, rate, burst float64) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(burst, b.tokens+elapsed*rate)
		b.last = now
	}
}

func (b *tokenBucket) take(now time.Time, rate, burst float64) bool {
	b.refill(now, rate, burst)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
