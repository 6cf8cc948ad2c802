package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"journiv/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds ids accepted from clients.
const maxRequestIDLen = 64

// w3cFields is the #Fields directive. x-request-id is an application field.
var w3cFields = []string{
	"date", "time", "c-ip", "cs-method", "cs-uri-stem", "cs-uri-query",
	"sc-status", "sc-bytes", "time-taken", "cs(User-Agent)", "cs(Referer)", "x-request-id",
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// ServiceName is written in the #Software directive.
	ServiceName string
	// SkipPaths are path prefixes that are never logged.
	SkipPaths []string
	// LogProbes enables logging of health, liveness and readiness probes.
	LogProbes bool
}

// DefaultLoggingConfig returns the configuration used by journiv serve.
// Container probes hit the server every few seconds, so they are not logged.
func DefaultLoggingConfig(serviceName string) LoggingConfig {
	return LoggingConfig{
		ServiceName: serviceName,
		SkipPaths:   []string{"/metrics"},
	}
}

var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger returns access-log middleware writing W3C Extended Log Format lines.
// The #Software and #Fields directives are written once, when it is built.
// Every response, logged or not, gets an X-Request-ID header.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	if config.ServiceName != "" {
		logging.Printf("#Software: %s", config.ServiceName)
	}
	logging.Printf("#Fields: %s", strings.Join(w3cFields, " "))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			logging.Printf("%s", accessLine(r, rec, id, start, time.Since(start)))
		})
	}
}

func (c LoggingConfig) skip(path string) bool {
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !c.LogProbes && probePaths[path]
}

// requestID keeps a sane client-supplied id, otherwise generates one.
func requestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, " \t\"") || sanitizeLogField(id) != id {
		return uuid.NewString()
	}
	return id
}

func accessLine(r *http.Request, rec *statusRecorder, id string, start time.Time, took time.Duration) string {
	ts := start.UTC()
	fields := []string{
		ts.Format("2006-01-02"),
		ts.Format("15:04:05"),
		field(clientIP(r)),
		field(r.Method),
		field(r.URL.Path),
		field(r.URL.RawQuery),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.written, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		field(r.Header.Get("User-Agent")),
		field(r.Header.Get("Referer")),
		id,
	}
	return strings.Join(fields, " ")
}

// field sanitizes a value and renders it as one W3C field: "-" when empty,
// quoted with doubled quotes when it contains whitespace or quotes.
func field(s string) string {
	s = sanitizeLogField(s)
	switch {
	case s == "":
		return "-"
	case strings.ContainsAny(s, " \t\""):
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	default:
		return s
	}
}

// sanitizeLogField removes control characters that could be used for log injection.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
