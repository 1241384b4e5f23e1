package handler

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/handler/views"
	appI18n "github.com/cloze-lab/ctest/internal/i18n"
)

const (
	visitorExpiry = 10 * time.Minute
	sweepInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client address. Idle entries are
// swept periodically.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	stop     chan struct{}
	once     sync.Once
}

// newIPLimiter returns a limiter allowing perSecond requests with the given
// burst per address. perSecond <= 0 disables limiting.
func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	l := &ipLimiter{
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	if perSecond <= 0 {
		l.limit = rate.Inf
		return l
	}
	if burst < 1 {
		burst = 1
	}
	l.limit = rate.Limit(perSecond)
	l.burst = burst
	go l.sweep()
	return l
}

func (l *ipLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if time.Since(v.lastSeen) > visitorExpiry {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Allow reports whether key may make a request now.
func (l *ipLimiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()
	return v.limiter.Allow()
}

// Stop ends the sweeper.
func (l *ipLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// clientIP returns the request's remote host. chi's RealIP middleware has
// already applied X-Forwarded-For when configured.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !h.limiter.Allow(ip) {
			slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			msg := ctest.Message{
				Lines:    []string{appI18n.T(r.Context(), "RateLimited")},
				Severity: ctest.SeverityWarning,
			}
			w.Header().Set("Retry-After", "1")
			if isHTMX(r) {
				h.render(w, r, http.StatusTooManyRequests, views.Alert(msg))
				return
			}
			h.render(w, r, http.StatusTooManyRequests, views.ErrorPage(msg))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeaders sets the response headers every page gets.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
