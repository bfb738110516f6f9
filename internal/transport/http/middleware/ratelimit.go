package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"onboarding/internal/platform/requestctx"
	"onboarding/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

// Decision is the state of a key's window after counting one hit.
type Decision struct {
	Count   int
	ResetIn time.Duration
}

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (Decision, error)
}

type rateBucket struct {
	count int
	reset time.Time
}

const memorySweepInterval = time.Minute

// MemoryLimiter keeps windows in process memory. Expired windows are swept
// at most once per memorySweepInterval.
type MemoryLimiter struct {
	mu        sync.Mutex
	now       func() time.Time
	clients   map[string]*rateBucket
	lastSweep time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now, clients: map[string]*rateBucket{}}
}

func (m *MemoryLimiter) Hit(_ context.Context, key string, window time.Duration) (Decision, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastSweep) >= memorySweepInterval {
		m.sweep(now)
	}
	bucket, ok := m.clients[key]
	if !ok || now.After(bucket.reset) {
		bucket = &rateBucket{count: 0, reset: now.Add(window)}
		m.clients[key] = bucket
	}
	bucket.count++
	return Decision{Count: bucket.count, ResetIn: bucket.reset.Sub(now)}, nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for key, bucket := range m.clients {
		if now.After(bucket.reset) {
			delete(m.clients, key)
		}
	}
	m.lastSweep = now
}

// RedisLimiter shares windows across instances with INCR and a key expiry.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:"}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string, window time.Duration) (Decision, error) {
	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return Decision{}, err
		}
	}
	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, err
	}
	if ttl < 0 {
		// Lost the expiry (crash between INCR and EXPIRE); set it again.
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return Decision{}, err
		}
		ttl = window
	}
	return Decision{Count: int(count), ResetIn: ttl}, nil
}

type rateLimiter struct {
	limit   int
	window  time.Duration
	scope   string
	keyFn   RateLimitKeyFunc
	backend Limiter
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

// WithLimiter swaps the in-memory backend, typically for a RedisLimiter.
func WithLimiter(l Limiter) RateLimitOption {
	return func(rl *rateLimiter) {
		if l != nil {
			rl.backend = l
		}
	}
}

// WithScope namespaces keys so separate limits do not share counters.
func WithScope(scope string) RateLimitOption {
	return func(rl *rateLimiter) {
		rl.scope = strings.TrimSpace(scope)
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey, opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimit applies limit per client IP and, separately, per submitted
// email, so neither spraying one account nor one address can exceed it.
func LoginRateLimit(limit int, window time.Duration, backend Limiter) func(http.Handler) http.Handler {
	byIP := newRateLimiter(limit, window, clientIPKey, WithLimiter(backend), WithScope("login-ip"))
	byEmail := newRateLimiter(limit, window, AuthEmailOrIPKey("email"), WithLimiter(backend), WithScope("login-email"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !byIP.enforce(w, r) {
				return
			}
			if !byEmail.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MutationRateLimit only counts POST, PUT, PATCH and DELETE requests, keyed
// by the authenticated caller.
func MutationRateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey, append([]RateLimitOption{WithScope("mutation")}, opts...)...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isMutation(r.Method) && !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isMutation(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	normalizedField := strings.TrimSpace(field)
	if normalizedField == "" {
		normalizedField = "email"
	}
	return func(r *http.Request) string {
		email := extractJSONField(r, normalizedField)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if subject, ok := GetSubject(r.Context()); ok && subject.UserID != "" {
		return "user:" + subject.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		if value := strings.TrimSpace(parts[0]); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func newRateLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc, opts ...RateLimitOption) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	rl := &rateLimiter{
		limit:  limit,
		window: window,
		keyFn:  keyFn,
	}
	for _, opt := range opts {
		opt(rl)
	}
	if rl.backend == nil {
		rl.backend = NewMemoryLimiter()
	}
	return rl
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	if rl.scope != "" {
		key = rl.scope + ":" + key
	}

	decision, err := rl.backend.Hit(r.Context(), key, rl.window)
	if err != nil {
		// Limiter outages must not take the API down with them.
		requestctx.Logger(r.Context()).Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	remaining := rl.limit - decision.Count
	resetIn := durationSeconds(decision.ResetIn)

	w.Header().Set("X-RateLimit-Limit", itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", itoa(max(remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", itoa(resetIn))

	if decision.Count > rl.limit {
		w.Header().Set("Retry-After", itoa(max(resetIn, 1)))
		requestctx.Logger(r.Context()).Warn("rate limit exceeded",
			zap.String("key", key),
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Int("limit", rl.limit),
			zap.Int("windowSec", int(rl.window.Seconds())),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return 1
	}
	return seconds
}

func extractJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), r.Body), r.Body}
	if len(raw) == 0 {
		return ""
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
