package proxy

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiter applies per-client token buckets keyed by remote address.
type limiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

func newLimiter(rps float64, burst int) *limiter {
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	return &limiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *limiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	item, ok := l.clients[client]
	if !ok {
		item = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[client] = item
	}
	item.lastSeen = now

	if len(l.clients) > 10_000 {
		l.cleanupLocked(now.Add(-10 * time.Minute))
	}
	return item.limiter.AllowN(now, 1)
}

func (l *limiter) cleanupLocked(threshold time.Time) {
	for ip, entry := range l.clients {
		if entry.lastSeen.Before(threshold) {
			delete(l.clients, ip)
		}
	}
}

// clientIP keys on the connection's address. Forwarding headers are only
// honored when a middleware such as chi's RealIP has already rewritten
// RemoteAddr for a trusted front proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
