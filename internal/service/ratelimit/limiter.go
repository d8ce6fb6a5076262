package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key: each key holds up to capacity
// tokens and regains refillPerSec tokens per second.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*entry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// New creates a limiter. Keys idle for longer than it takes to refill are
// dropped lazily.
func New(capacity, refillPerSec float64) *Limiter {
	burst := int(capacity)
	if burst < 1 {
		burst = 1
	}
	idle := time.Minute
	if refillPerSec > 0 {
		idle = max(idle, time.Duration(float64(burst)/refillPerSec*float64(time.Second)))
	}
	return &Limiter{
		m:       make(map[string]*entry),
		limit:   rate.Limit(refillPerSec),
		burst:   burst,
		idleTTL: idle,
		now:     time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for k, e := range l.m {
		if now.Sub(e.seen) > l.idleTTL {
			delete(l.m, k)
		}
	}
}
