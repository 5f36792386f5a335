package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	apperrors "github.com/nijaru/ytdl-web/errors"
)

const (
	staleClientAfter = 10 * time.Minute
	sweepInterval    = time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	trusted   TrustedProxies
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter keys buckets on the peer address. X-Forwarded-For is only
// used when the peer is one of trusted.
func NewRateLimiter(requestsPerMinute int, burst int, trusted TrustedProxies) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(requestsPerMinute) / 60,
		burst:   burst,
		trusted: trusted,
		now:     time.Now,
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > sweepInterval {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > staleClientAfter {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.trusted.ClientIP(r)) {
			GetLogger(r.Context()).Warn("Rate limit exceeded")
			writeError(w, apperrors.RateLimited("RateLimiter.Middleware"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TrustedProxies is the set of peers allowed to report the client address.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts plain IPs and CIDRs.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid trusted proxy %q", entry)
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

func (t TrustedProxies) contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address unless the peer is trusted, in which case
// the nearest untrusted X-Forwarded-For hop is used.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	remote := RemoteIP(r)
	if len(t) == 0 || !t.contains(remote) {
		return remote
	}

	fwd := r.Header.Values("X-Forwarded-For")
	var hops []string
	for _, v := range fwd {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		if !t.contains(hops[i]) {
			return hops[i]
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}
	return remote
}

// RemoteIP is the host part of RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
