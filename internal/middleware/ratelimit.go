package middleware

import (
	"net/http"
	"sync"
	"time"
)

// TokenBucket implements token bucket rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tokensToAdd := int(elapsed * float64(tb.refillRate))

	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// UploadLimiter rate-limits screenshot uploads per remote address. Captures
// arrive in bursts while the extension walks a page, so the bucket allows a
// burst then throttles.
type UploadLimiter struct {
	mu         sync.RWMutex
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate int
}

func NewUploadLimiter(capacity, refillRate int) *UploadLimiter {
	return &UploadLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

func (l *UploadLimiter) bucket(addr string) *TokenBucket {
	l.mu.RLock()
	tb, ok := l.buckets[addr]
	l.mu.RUnlock()
	if ok {
		return tb
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if tb, ok := l.buckets[addr]; ok {
		return tb
	}
	tb = NewTokenBucket(l.capacity, l.refillRate)
	l.buckets[addr] = tb
	return tb
}

// Middleware rejects requests over the limit with 429.
func (l *UploadLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.bucket(r.RemoteAddr).Allow() {
			http.Error(w, "too many uploads", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
