package middleware

import (
	"sync/atomic"
	"time"
)

// RateLimiter is a lock-free token bucket. Tokens refill at one per rate
// interval up to burst.
type RateLimiter struct {
	tokens   int32
	rate     time.Duration
	burst    int32
	lastTick int64
}

func NewRateLimiter(burst int32, rate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:   burst,
		rate:     rate,
		burst:    burst,
		lastTick: time.Now().UnixNano(),
	}
}

func (l *RateLimiter) Allow() bool {
	now := time.Now().UnixNano()
	last := atomic.LoadInt64(&l.lastTick)

	if generated := int32((now - last) / int64(l.rate)); generated > 0 {
		if atomic.CompareAndSwapInt64(&l.lastTick, last, now) {
			current := atomic.LoadInt32(&l.tokens)
			balance := current + generated
			if balance > l.burst {
				balance = l.burst
			}
			atomic.StoreInt32(&l.tokens, balance)
		}
	}

	for {
		current := atomic.LoadInt32(&l.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&l.tokens, current, current-1) {
			return true
		}
	}
}
