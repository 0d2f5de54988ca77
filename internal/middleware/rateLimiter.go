package middleware

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/akolanti/DocsetAgent/internal/config"
)

type IPRateLimiter struct {
	ips       map[string]*rate.Limiter
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	if b < 1 {
		b = 1
	}
	return &IPRateLimiter{ips: make(map[string]*rate.Limiter), rateLimit: r, burstRate: b}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.rateLimit, i.burstRate)
		i.ips[ip] = limiter
	}
	return limiter
}

// zero means unlimited
func rateOf(server config.Server) rate.Limit {
	if server.RateLimitPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(server.RateLimitPerSecond)
}

//TODO: entries are never evicted, move them to redis with a TTL once there are many clients
