// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the bot. Webhook
// traffic carries phone numbers, group ids and transport secrets, so nothing
// is logged before it went through the scrubber:
//
//   - request and response bodies are never logged
//   - sensitive headers (Authorization, Cookie, the Telegram secret, plus
//     custom ones) are fully masked
//   - sensitive query parameters (hub.verify_token, OAuth code/state, plus
//     custom ones) are fully masked
//   - emails, phone numbers, WhatsApp ids and UUIDs are pattern-redacted in
//     the remaining query values and header values
//
// The middleware also attaches a request-scoped zerolog.Logger, retrievable
// with LoggerFrom, carrying the request id, method and route.
package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions adds to the built-in masking rules. Matching is
// case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
	MaskQuery   []string
}

var (
	uuidRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	// WhatsApp group and user JIDs, e.g. 120363042@g.us, 6281234@s.whatsapp.net.
	jidRE   = regexp.MustCompile(`(?i)\b\d{5,}(?:-\d+)?@(?:g\.us|s\.whatsapp\.net|c\.us)\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only so hex runs inside ids never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact scrubs identifiers from s. UUIDs and JIDs go first so the looser
// patterns never see their digit runs.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = jidRE.ReplaceAllString(s, "[REDACTED:jid]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

func lowerSet(base []string, extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(base)+len(extra))
	for _, lists := range [][]string{base, extra} {
		for _, v := range lists {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				set[v] = struct{}{}
			}
		}
	}
	return set
}

// redactQuery masks listed parameters and pattern-redacts the rest. Keys are
// emitted in sorted order so log lines are stable.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return Redact(raw)
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range vals[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			if _, masked := mask[strings.ToLower(k)]; masked {
				b.WriteString("[REDACTED]")
			} else {
				b.WriteString(Redact(v))
			}
		}
	}
	return truncate(b.String(), maxQueryLogLength)
}

// RedactingLogger returns the scrubbing access logger. Level is info, warn
// for 4xx and error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet(
		[]string{"authorization", "cookie", "set-cookie", "x-telegram-bot-api-secret-token", "x-hub-signature-256"},
		opts.MaskHeaders,
	)
	maskQuery := lowerSet([]string{"hub.verify_token", "code", "state"}, opts.MaskQuery)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redactQuery(c.Request.URL.RawQuery, maskQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, masked := maskHeaders[strings.ToLower(k)]; masked {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = Redact(strings.Join(vv, ", "))
		}

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		scoped := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		ev := scoped.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = scoped.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = scoped.Warn()
		}
		ev.
			Str("query", safeQuery).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
