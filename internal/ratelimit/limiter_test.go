package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"marketalert/internal/cache"
)

type brokenCounter struct{}

func (brokenCounter) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("dial tcp: connection refused")
}

func testPolicy() Policy {
	return Policy{AuthPrefix: "/api/auth", APIPrefix: "/api", AuthLimit: 5, APILimit: 20, GlobalLimit: 50}
}

func TestPolicy_Classify(t *testing.T) {
	p := testPolicy()
	cases := []struct {
		path  string
		tier  Tier
		limit int64
	}{
		{"/api/auth/token", TierAuth, 5},
		{"/api/v1/monitor/status", TierAPI, 20},
		{"/healthz", TierGlobal, 50},
		{"/", TierGlobal, 50},
	}
	for _, tc := range cases {
		tier, limit := p.Classify(tc.path)
		if tier != tc.tier || limit != tc.limit {
			t.Fatalf("path=%s tier=%s limit=%d want %s/%d", tc.path, tier, limit, tc.tier, tc.limit)
		}
	}
}

func TestKey_Format(t *testing.T) {
	if got := Key(TierAuth, "10.0.0.1"); got != "rate_limit:auth:10.0.0.1" {
		t.Fatalf("auth key=%s", got)
	}
	if got := Key(TierAPI, "10.0.0.1"); got != "rate_limit:global:10.0.0.1" {
		t.Fatalf("api key=%s", got)
	}
	if got := Key(TierGlobal, "10.0.0.1"); got != "rate_limit:global:10.0.0.1" {
		t.Fatalf("global key=%s", got)
	}
}

func TestClientIP_Order(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{"forwarded first entry", "203.0.113.7, 10.0.0.1", "198.51.100.2", "127.0.0.1:5000", "203.0.113.7"},
		{"real ip", "", "198.51.100.2", "127.0.0.1:5000", "198.51.100.2"},
		{"peer address", "", "", "192.0.2.9:41000", "192.0.2.9"},
		{"peer without port", "", "", "192.0.2.9", "192.0.2.9"},
		{"blank forwarded entry", " , 10.0.0.1", "", "192.0.2.9:1", "192.0.2.9"},
		{"nothing", "", "", "", "unknown"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if tc.realIP != "" {
			r.Header.Set("X-Real-IP", tc.realIP)
		}
		if got := ClientIP(r); got != tc.want {
			t.Fatalf("%s: ip=%q want %q", tc.name, got, tc.want)
		}
	}
}

func TestLimiter_SixthRequestRejected(t *testing.T) {
	l := &Limiter{Store: cache.NewMemoryStore(), Window: time.Minute, Policy: testPolicy()}
	for i := 1; i <= 6; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		d := l.Allow(context.Background(), r)
		if d.Count != int64(i) {
			t.Fatalf("request %d count=%d", i, d.Count)
		}
		if want := i <= 5; d.Allowed != want {
			t.Fatalf("request %d allowed=%v want %v", i, d.Allowed, want)
		}
	}
}

func TestLimiter_FailOpen(t *testing.T) {
	l := &Limiter{Store: brokenCounter{}, Window: time.Minute, Policy: testPolicy()}
	d := l.Allow(context.Background(), httptest.NewRequest(http.MethodGet, "/api/v1/x", nil))
	if !d.Allowed || !d.FailOpen {
		t.Fatalf("decision=%+v want fail-open allow", d)
	}
}

func newEngine(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(l))
	r.POST("/api/auth/token", func(c *gin.Context) { c.String(http.StatusOK, "token") })
	r.GET("/api/v1/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestMiddleware_HeadersAndRejection(t *testing.T) {
	engine := newEngine(&Limiter{Store: cache.NewMemoryStore(), Window: time.Minute, Policy: testPolicy()})
	var last *httptest.ResponseRecorder
	for i := 1; i <= 6; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.50")
		engine.ServeHTTP(w, r)
		if i <= 5 {
			if w.Code != http.StatusOK {
				t.Fatalf("request %d status=%d", i, w.Code)
			}
			if got := w.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(5-i) {
				t.Fatalf("request %d remaining=%s want %d", i, got, 5-i)
			}
		}
		last = w
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("retry-after=%q want 60", got)
	}
	if got := last.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("limit=%q want 5", got)
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("remaining=%q want 0", got)
	}
	if ct := last.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("content-type=%q", ct)
	}
	if last.Body.String() == "token" {
		t.Fatalf("handler ran for rejected request")
	}

	// Auth rejections do not spend the API tier budget.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50")
	engine.ServeHTTP(w, r)
	if w.Code != http.StatusOK || w.Header().Get("X-RateLimit-Limit") != "20" {
		t.Fatalf("api tier status=%d limit=%s", w.Code, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddleware_FailOpenSkipsHeaders(t *testing.T) {
	engine := newEngine(&Limiter{Store: brokenCounter{}, Window: time.Minute, Policy: testPolicy()})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatalf("unexpected limit header on fail-open")
	}
}
