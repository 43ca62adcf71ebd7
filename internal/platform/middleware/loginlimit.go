package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"findmyid/internal/platform/redis"
	"findmyid/pkg/requestcontext"
)

// LoginLimiter throttles credential-guessing on the auth endpoints with a
// fixed window per client IP. Redis keeps the counters shared across
// replicas; when Redis is absent or failing the limiter degrades to a local
// in-memory window rather than failing open entirely.
type LoginLimiter struct {
	client *redis.Client
	logger *slog.Logger
	limit  int
	window time.Duration

	mu     sync.Mutex
	local  map[string]*window
	lastGC time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewLoginLimiter(client *redis.Client, limit int, windowSize time.Duration, logger *slog.Logger) *LoginLimiter {
	return &LoginLimiter{
		client: client,
		logger: logger,
		limit:  limit,
		window: windowSize,
		local:  make(map[string]*window),
	}
}

// Limit wraps a handler with the rate check.
func (l *LoginLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(r, ip) {
			l.logger.WarnContext(r.Context(), "auth rate limit exceeded",
				"ip", ip,
				"request_id", requestcontext.RequestID(r.Context()),
			)
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "Too many attempts, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *LoginLimiter) allow(r *http.Request, ip string) bool {
	if l.client != nil {
		if allowed, ok := l.allowRedis(r, ip); ok {
			return allowed
		}
	}
	return l.allowLocal(ip)
}

func (l *LoginLimiter) allowRedis(r *http.Request, ip string) (allowed, ok bool) {
	ctx := r.Context()
	key := "findmyid:authlimit:" + ip

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.WarnContext(ctx, "auth limiter falling back to local window", "error", err)
		return false, false
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	return count <= int64(l.limit), true
}

func (l *LoginLimiter) allowLocal(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.window {
		for k, w := range l.local {
			if now.After(w.resetAt) {
				delete(l.local, k)
			}
		}
		l.lastGC = now
	}

	w, exists := l.local[ip]
	if !exists || now.After(w.resetAt) {
		l.local[ip] = &window{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	w.count++
	return w.count <= l.limit
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
