package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// limiterPool hands out one token bucket per caller key, where a key is
// either an API key or, for unauthenticated paths, the remote address.
// Buckets are created lazily on first sight of a key and kept for the
// lifetime of the gateway.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	cfg     SecConfig
}

// Allow reports whether the caller behind key may proceed right now.
func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.buckets[key]
	if !ok {
		if p.buckets == nil {
			p.buckets = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rate.Limit(p.rps()), p.burst())
		p.buckets[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}

func (p *limiterPool) rps() float64 {
	if p.cfg.RPS > 0 {
		return p.cfg.RPS
	}
	return defaultRPS
}

func (p *limiterPool) burst() int {
	if p.cfg.Burst > 0 {
		return p.cfg.Burst
	}
	return defaultBurst
}
