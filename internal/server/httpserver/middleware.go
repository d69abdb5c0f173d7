package httpserver

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/tlsdir/internal/telemetry/logger"
	"github.com/yndnr/tlsdir/pkg/cmap"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is the
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID reuses a well-formed X-Request-ID header or generates a ULID,
// echoes it in the response and stores it, with a request-scoped logger,
// in the context.
func RequestID(l logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if !validRequestID(requestID) {
				requestID = ulid.Make().String()
			}

			w.Header().Set(HeaderRequestID, requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = logger.WithLogger(ctx, l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// Recover recovers from handler panics and answers 500. Only the
// panicking request is affected.
func Recover(l logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				l.Error("panic recovered",
					"request_id", logger.RequestIDFromContext(r.Context()),
					"error", fmt.Sprint(err),
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeStatus(w, r, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request. 5xx responses are logged at error
// level, 4xx at warn.
func AccessLog(l logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"bytes", wrapped.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", clientIP(r),
				"proto", r.Proto,
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, "query", logger.RedactQuery(r.URL.RawQuery))
			}
			if ua := r.UserAgent(); ua != "" {
				attrs = append(attrs, "user_agent", ua)
			}

			switch status := wrapped.Status(); {
			case status >= 500:
				l.Error("request completed with error", attrs...)
			case status >= 400:
				l.Warn("request completed with client error", attrs...)
			default:
				l.Info("request completed", attrs...)
			}
		})
	}
}

// RequestRecorder receives per-request measurements.
type RequestRecorder interface {
	RecordRequest(method, code string, d time.Duration, bytes int64)
}

// Metrics records request counts, latency and response size.
func Metrics(rec RequestRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			rec.RecordRequest(methodLabel(r.Method), strconv.Itoa(wrapped.Status()),
				time.Since(start), wrapped.BytesWritten())
		})
	}
}

// methodLabel bounds label cardinality for arbitrary client methods.
func methodLabel(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
		http.MethodConnect, http.MethodTrace:
		return m
	}
	return "OTHER"
}

// Methods answers 501 Not Implemented for any method outside allowed.
func Methods(allowed ...string) Middleware {
	allow := ""
	set := make(map[string]bool, len(allowed))
	for i, m := range allowed {
		set[m] = true
		if i > 0 {
			allow += ", "
		}
		allow += m
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set[r.Method] {
				w.Header().Set("Allow", allow)
				writeStatus(w, r, http.StatusNotImplemented)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitConfig configures the per-client limiter.
type RateLimitConfig struct {
	// Rate is the sustained requests per second per client IP.
	Rate float64

	// Burst is the bucket size. Defaults to ceil(Rate).
	Burst int

	// OnLimit is called for every rejected request.
	OnLimit func()
}

// RateLimit applies a token bucket per client IP and answers 429 with
// Retry-After when a client exceeds it.
func RateLimit(cfg RateLimitConfig) Middleware {
	lim := newIPLimiter(cfg.Rate, cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := lim.allow(clientIP(r))
			if !ok {
				if cfg.OnLimit != nil {
					cfg.OnLimit()
				}
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeStatus(w, r, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const (
	limiterIdleTTL       = 3 * time.Minute
	limiterSweepInterval = time.Minute
)

type ipLimiter struct {
	limit     rate.Limit
	burst     int
	clients   *cmap.Map[*clientLimiter]
	lastSweep atomic.Int64
	now       func() time.Time
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen atomic.Int64 // unix nanos of the last request
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: cmap.New[*clientLimiter](),
		now:     time.Now,
	}
}

// allow reports whether ip may proceed, and if not, how long it should wait.
func (l *ipLimiter) allow(ip string) (bool, time.Duration) {
	now := l.now()
	l.sweep(now)

	c, _ := l.clients.GetOrCreate(ip, func() *clientLimiter {
		return &clientLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
	})
	c.seen.Store(now.UnixNano())

	res := c.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// sweep drops limiters idle for longer than limiterIdleTTL, at most once
// per limiterSweepInterval.
func (l *ipLimiter) sweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last <= int64(limiterSweepInterval) {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-limiterIdleTTL).UnixNano()
	l.clients.DeleteFunc(func(_ string, c *clientLimiter) bool {
		return c.seen.Load() < cutoff
	})
}

func (l *ipLimiter) size() int {
	return l.clients.Count()
}

// clientIP returns the peer address. Forwarding headers are ignored
// since the server terminates TLS itself.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const statusPage = `<!DOCTYPE html>
<html>
<head><title>%[1]d %[2]s</title></head>
<body>
<h1>%[1]d %[2]s</h1>
</body>
</html>
`

func writeStatus(w http.ResponseWriter, r *http.Request, code int) {
	body := fmt.Sprintf(statusPage, code, http.StatusText(code))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		io.WriteString(w, body)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and
// body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	written     int64
}

// wrapResponseWriter returns w itself when it is already wrapped, so
// stacked middlewares share one set of counters.
func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader && code >= 200 {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// ReadFrom keeps the sendfile path of the underlying writer.
func (w *responseWriter) ReadFrom(src io.Reader) (int64, error) {
	w.wroteHeader = true
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		n, err := rf.ReadFrom(src)
		w.written += n
		return n, err
	}
	n, err := io.Copy(writerOnly{w.ResponseWriter}, src)
	w.written += n
	return n, err
}

// Flush implements http.Flusher.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.wroteHeader = true
		f.Flush()
	}
}

// Hijack implements http.Hijacker.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *responseWriter) Status() int {
	return w.statusCode
}

func (w *responseWriter) BytesWritten() int64 {
	return w.written
}

// writerOnly hides ReadFrom to avoid recursing into ourselves.
type writerOnly struct {
	io.Writer
}
