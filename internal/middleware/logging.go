package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"media-curator/internal/logging"
)

const serviceName = "media-curator"

// responseWriter records the status and size of a response. onHeader runs
// once, when the status is committed.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
	onHeader     func(status int, h http.Header)
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) commit(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	if rw.onHeader != nil {
		rw.onHeader(code, rw.Header())
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.commit(code)
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.commit(http.StatusOK)
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig selects which requests are written to the access log.
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
	LogMetrics      bool
}

// DefaultLoggingConfig logs everything except Prometheus scrapes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogHealthChecks: true}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger writes one access log line per request:
//
//	media-curator <client> "<method> <uri>" <status> <bytes> <duration> enc=<encoding> ua="<agent>"
//
// Event streams also get a line when they open, since the request line only
// appears once the client disconnects.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			client := sanitizeLogField(getClientIP(r))
			request := requestField(r)

			wrapped := newResponseWriter(w)
			wrapped.onHeader = func(status int, h http.Header) {
				if isEventStream(h.Get("Content-Type")) {
					logging.Printf("%s %s %s stream opened (%d)", serviceName, client, request, status)
				}
			}

			next.ServeHTTP(wrapped, r)

			encoding := wrapped.Header().Get("Content-Encoding")
			if encoding == "" {
				encoding = "-"
			}
			logging.Printf("%s %s %s %d %d %s enc=%s ua=%s",
				serviceName, client, request,
				wrapped.statusCode, wrapped.bytesWritten,
				time.Since(start).Round(time.Microsecond),
				encoding, quoteField(r.Header.Get("User-Agent")),
			)
		})
	}
}

func requestField(r *http.Request) string {
	uri := r.URL.Path
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return quoteField(r.Method + " " + uri)
}

func quoteField(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// sanitizeLogField blanks line breaks and drops other control characters
// (tab excepted) so request data cannot forge log lines or emit terminal
// escapes.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if healthCheckPaths[path] {
		return !config.LogHealthChecks
	}
	return path == "/metrics" && !config.LogMetrics
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
