// Package ratelimit counts requests per client in fixed windows over the
// shared cache and rejects callers above their route tier's limit.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketalert/internal/config"
	"marketalert/internal/metrics"
)

// Counter is the subset of cache.Store the limiter needs.
type Counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Tier string

const (
	TierAuth   Tier = "auth"
	TierAPI    Tier = "api"
	TierGlobal Tier = "global"
)

const unknownClient = "unknown"

// Policy maps a request path to its tier and limit. Auth is checked
// before API so that auth routes under the API prefix get the strict limit.
type Policy struct {
	AuthPrefix  string
	APIPrefix   string
	AuthLimit   int64
	APILimit    int64
	GlobalLimit int64
}

func PolicyFromConfig(cfg config.RateLimitConfig) Policy {
	return Policy{
		AuthPrefix:  cfg.AuthPrefix,
		APIPrefix:   cfg.APIPrefix,
		AuthLimit:   cfg.AuthLimit,
		APILimit:    cfg.APILimit,
		GlobalLimit: cfg.GlobalLimit,
	}
}

func (p Policy) Classify(path string) (Tier, int64) {
	switch {
	case p.AuthPrefix != "" && strings.HasPrefix(path, p.AuthPrefix):
		return TierAuth, p.AuthLimit
	case p.APIPrefix != "" && strings.HasPrefix(path, p.APIPrefix):
		return TierAPI, p.APILimit
	default:
		return TierGlobal, p.GlobalLimit
	}
}

// Key returns the counter key for a tier and client. The API tier shares
// the global key shape and only differs by limit.
func Key(tier Tier, clientIP string) string {
	if tier == TierAuth {
		return "rate_limit:auth:" + clientIP
	}
	return "rate_limit:global:" + clientIP
}

type Limiter struct {
	Store  Counter
	Window time.Duration
	Policy Policy
	Logger *zap.Logger
}

// Increment bumps the counter at key, starting a new window of length
// window when the key does not exist yet.
func (l *Limiter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return l.Store.IncrWithTTL(ctx, key, window)
}

// Decision is the outcome of one Allow call. Limit and Count are zero when
// the limiter failed open.
type Decision struct {
	Tier     Tier
	Key      string
	Limit    int64
	Count    int64
	Allowed  bool
	FailOpen bool
}

func (d Decision) Remaining() int64 {
	if rem := d.Limit - d.Count; rem > 0 {
		return rem
	}
	return 0
}

// Allow counts r against its tier. Cache failures allow the request.
func (l *Limiter) Allow(ctx context.Context, r *http.Request) Decision {
	if l == nil || l.Store == nil {
		return Decision{Tier: TierGlobal, Allowed: true, FailOpen: true}
	}
	tier, limit := l.Policy.Classify(r.URL.Path)
	key := Key(tier, ClientIP(r))
	d := Decision{Tier: tier, Key: key, Limit: limit}

	count, err := l.Increment(ctx, key, l.Window)
	if err != nil {
		l.logger().Warn("rate limit counter unavailable, allowing request",
			zap.String("tier", string(tier)), zap.Error(err))
		metrics.RateLimitFailOpenTotal.Inc()
		d.Allowed, d.FailOpen = true, true
		return d
	}
	d.Count = count
	d.Allowed = count <= limit
	if !d.Allowed {
		metrics.RateLimitRejectedTotal.WithLabelValues(string(tier)).Inc()
	}
	return d
}

func (l *Limiter) logger() *zap.Logger {
	if l == nil || l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// ClientIP resolves the caller: first X-Forwarded-For entry, then
// X-Real-IP, then the peer address, then a shared "unknown" bucket.
func ClientIP(r *http.Request) string {
	if r == nil {
		return unknownClient
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		return addr
	}
	return unknownClient
}
