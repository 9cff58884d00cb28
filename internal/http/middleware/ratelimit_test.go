package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	if got := KeyByClientIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByClientIP = %q", got)
	}
	if got := KeyByRoute()(c); got != "ip:203.0.113.9|unmatched" {
		t.Fatalf("KeyByRoute = %q", got)
	}
}

func TestNewRateLimiter_DefaultsAndReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, nil)
	if rl.burst != 1 || rl.keyFn == nil {
		t.Fatalf("defaults not applied: burst=%d", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if got := rl.getVisitor("k1"); got != lim {
		t.Fatalf("expected the same limiter to be reused")
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByClientIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	_, oldOK := rl.visitors["old"]
	_, newOK := rl.visitors["new"]
	rl.mu.Unlock()
	if oldOK || !newOK {
		t.Fatalf("old present=%v new present=%v", oldOK, newOK)
	}
}

func TestRateLimiter_Handler_AllowThenDeny(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1.0, 1, KeyByClientIP())

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-1"); c.Next() })
	r.Use(rl.Handler())
	r.POST("/webhook", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	base := testutil.ToFloat64(rateLimited.WithLabelValues("/webhook"))

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request: %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	if w2.Code != http.StatusTooManyRequests || w2.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request: %d retry=%q", w2.Code, w2.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
		t.Fatalf("body = %v", body)
	}
	if got := testutil.ToFloat64(rateLimited.WithLabelValues("/webhook")); got != base+1 {
		t.Fatalf("rate limited counter = %v, want %v", got, base+1)
	}

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = net.JoinHostPort("198.51.100.4", "1")
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req)
	if w3.Code != http.StatusOK {
		t.Fatalf("other client: %d", w3.Code)
	}
}
