package middleware

import (
	"sync"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

var limiterInstance = NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client ip. Buckets idle for limiterIdleTTL are
// dropped on the next lookup sweep.
type IPRateLimiter struct {
	ips       map[string]*ipLimiter
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
	lastSweep time.Time
	now       func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{ips: make(map[string]*ipLimiter), rateLimit: r, burstRate: b, now: time.Now}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if now.Sub(i.lastSweep) > limiterIdleTTL {
		for key, l := range i.ips {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(i.ips, key)
			}
		}
		i.lastSweep = now
	}

	l, exists := i.ips[ip]
	if !exists {
		l = &ipLimiter{limiter: rate.NewLimiter(i.rateLimit, i.burstRate)}
		i.ips[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}

func (i *IPRateLimiter) size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}
