package ratelimit

import (
	"net/http"
	"sync"
	"time"

	xhttp "RiskCast/pkg/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type entry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// Limiter keeps one token bucket per key, typically the client IP.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*entry
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time
}

// New creates a limiter allowing rps requests per second with the given burst per key.
// Keys idle for more than ten minutes are dropped on the next sweep.
func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:     make(map[string]*entry),
		rps:   rate.Limit(rps),
		burst: burst,
		idle:  10 * time.Minute,
		now:   time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = e
	}
	e.seen = now
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Sweep drops keys not seen within the idle window and returns how many remain.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.m {
		if e.seen.Before(cutoff) {
			delete(l.m, k)
		}
	}
	return len(l.m)
}

// Middleware rejects requests over the per-IP budget with 429.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	var calls uint64
	var mu sync.Mutex
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			mu.Lock()
			calls++
			sweep := calls%1024 == 0
			mu.Unlock()
			if sweep {
				l.Sweep()
			}
			if !l.Allow(c.RealIP()) {
				return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
