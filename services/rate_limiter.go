package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedLimiter enforces a per-operation request budget keyed by client
// identity. Exceeding the budget fails immediately, no queueing.
type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newKeyedLimiter(perMinute int) *keyedLimiter {
	return &keyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (k *keyedLimiter) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Allow reports whether the key may proceed. When denied it returns the
// delay after which a retry could succeed.
func (k *keyedLimiter) Allow(key string) (bool, time.Duration) {
	r := k.get(key).Reserve()
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}
