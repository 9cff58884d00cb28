package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = asString(c.Value(requestIDKey))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	gen := w.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(gen); err != nil || seen != gen {
		t.Fatalf("generated id = %q, context = %q", gen, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("x-request-id", "rid-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "rid-123" {
		t.Fatalf("propagated id = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("a", maxRequestIDLength+1))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); len(got) > maxRequestIDLength {
		t.Fatalf("oversized id was echoed")
	}
}

func TestRecovery_PanicsToJSON500AndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestIDHeader, "rid-p")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["request_id"] != "rid-p" || body["code"] != "internal_error" {
		t.Fatalf("body = %v", body)
	}
	logs := buf.String()
	if !strings.Contains(logs, "panic recovered") || !strings.Contains(logs, `"request_id":"rid-p"`) {
		t.Fatalf("panic not logged with request id: %s", logs)
	}
}

func TestRecovery_PanicAfterWrite_NoJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_ = withCapturedLogger(t)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("must not append JSON after a write: %q", w.Body.String())
	}
}

func TestLoggerFrom_FallbackAndRequestScoped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	LoggerFrom(c).Info().Msg("fallback")
	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("fallback logger should carry no request fields: %s", buf.String())
	}

	buf.Reset()
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/scoped", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set(requestIDHeader, "rid-s")
	r.ServeHTTP(httptest.NewRecorder(), req)

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, `"message":"inside"`) {
			if !strings.Contains(line, `"request_id":"rid-s"`) || !strings.Contains(line, `"path":"/scoped"`) {
				t.Fatalf("scoped line lacks fields: %s", line)
			}
			return
		}
	}
	t.Fatalf("scoped log line not found: %s", buf.String())
}

func TestHelpers_asString_and_truncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" {
		t.Fatalf("asString failed")
	}
	if truncate("hello", 10) != "hello" || truncate("abc", 0) != "abc" {
		t.Fatalf("truncate no-op failed")
	}
	if got := truncate("abcdefgh", 5); got != "abcde…" {
		t.Fatalf("truncate = %q", got)
	}
}
