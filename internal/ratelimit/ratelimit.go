package ratelimit

import (
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Guard is a per-source-address accept-rate limiter, generalized from the
// hardcoded 200-per-30s WAF check in cppla-moto/controller/server.go's
// Listen function into a constructor taking the limit and window.
type Guard struct {
	c     *cache.Cache
	limit int
}

func New(limit int, window time.Duration) *Guard {
	return &Guard{c: cache.New(window, window*2), limit: limit}
}

// Allow reports whether another attempt from remoteAddr (host:port, as
// returned by net.Conn.RemoteAddr/net.Addr.String) is permitted, bumping
// its count as a side effect.
func (g *Guard) Allow(remoteAddr string) bool {
	host := remoteAddr
	if i := strings.LastIndex(remoteAddr, ":"); i >= 0 {
		host = remoteAddr[:i]
	}
	if count, found := g.c.Get(host); found {
		if count.(int) >= g.limit {
			return false
		}
		g.c.Increment(host, 1)
		return true
	}
	g.c.Set(host, 1, cache.DefaultExpiration)
	return true
}
