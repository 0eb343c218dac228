// Package ratelimiter provides a per-key token bucket used in front of the
// daemon's HTTP surface.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

// Keyed applies a token bucket per client key and sweeps idle entries so the
// map cannot grow without bound.
type Keyed struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*clientBucket
	calls uint64
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a keyed limiter. Returns nil for non-positive rps or burst; a
// nil limiter allows everything.
func New(rps float64, burst int) *Keyed {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &Keyed{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: defaultIdleTTL,
		byKey:   make(map[string]*clientBucket),
	}
}

// Allow reports whether one token can be consumed for key at now. Empty keys
// are never limited.
func (l *Keyed) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now

	l.calls++
	if l.calls%512 == 0 {
		l.sweep(now)
	}
	return b.limiter.AllowN(now, 1)
}

func (l *Keyed) sweep(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.byKey {
		if b.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
