package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is the narrow interface the REST and admin surfaces depend
// on; restapi wires a TokenBucketLimiter in-process, node wires a
// DynamoDB-backed DistributedRateLimiter so a Lambda fleet shares one
// counter per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// TokenBucketLimiter is the single-process limiter: one bucket per key,
// refilled on access rather than on a ticking clock per key. It's what
// internal/restapi/router.go puts in front of the API when it is given no
// limiter, which cmd/node does outside production.
type TokenBucketLimiter struct {
	mu         sync.RWMutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	cleanupInt time.Duration
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// NewTokenBucketLimiter returns a limiter allowing maxTokens requests per
// key, refilling one token every refillRate. A background goroutine evicts
// buckets idle for over an hour so long-lived processes don't accumulate
// one bucket per caller forever.
func NewTokenBucketLimiter(maxTokens int, refillRate time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		cleanupInt: 5 * time.Minute,
	}
	go l.cleanup()
	return l
}

// Allow reports whether key has a token available, consuming one if so.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: l.maxTokens, lastRefill: time.Now()}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if added := int(now.Sub(b.lastRefill) / l.refillRate); added > 0 {
		b.tokens += added
		if b.tokens > l.maxTokens {
			b.tokens = l.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Reset drops key's bucket so its next Allow call starts at full tokens.
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// cleanup evicts buckets that haven't refilled in over an hour.
func (l *TokenBucketLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInt)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, b := range l.buckets {
			b.mu.Lock()
			idle := now.Sub(b.lastRefill) > time.Hour
			b.mu.Unlock()
			if idle {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
