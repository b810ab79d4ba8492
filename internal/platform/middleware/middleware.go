// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware provides the cross-cutting HTTP processing chain.

It acts as a series of decorators around the standard http.Handler, injecting
traceability, safety, and security into every request lifecycle.

Chain order used by the API server:

	ProxyHeaders -> RequestID -> StructuredLogger -> PanicRecovery -> Timeout -> RateLimit -> CORS -> Authenticate

The client IP computed by [RealIP] is the same value the login throttle and the
audit trail store. Forwarding headers count only when the socket peer is a
configured trusted proxy.
*/
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/skpdportal/internal/platform/constants"
	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
	"github.com/taibuivan/skpdportal/internal/platform/observability"
	"github.com/taibuivan/skpdportal/internal/platform/respond"
	"github.com/taibuivan/skpdportal/pkg/uuid"
)

// # Request Tracing

// RequestID attaches a correlation ID to every request for log tracing.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// A caller-supplied ID is reused only when it is a well-formed UUID,
			// so it can never smuggle arbitrary text into the logs.
			requestID := request.Header.Get(constants.HeaderXRequestID)
			if !uuid.Valid(requestID) {
				requestID = uuid.New()
			}

			ctx := ctxutil.WithRequestID(request.Context(), requestID)
			writer.Header().Set(constants.HeaderXRequestID, requestID)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Activity Logging

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// StructuredLogger injects a request-scoped logger into the context and logs
// one line per finished request.
//
// Credentials never reach the log: only the path is recorded, never the body
// or the query string.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			startTime := time.Now()

			requestLogger := logger.With(
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("host", request.Host),
				slog.String("ip", RealIP(request)),
			)

			ctx := ctxutil.WithLogger(request.Context(), requestLogger)
			recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			next.ServeHTTP(recorder, request.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case recorder.status >= 500:
				level = slog.LevelError
			case recorder.status >= 400:
				level = slog.LevelWarn
			}

			requestLogger.Log(ctx, level, "http_request_finished",
				slog.Int("status", recorder.status),
				slog.Int64("latency_ms", time.Since(startTime).Milliseconds()),
				slog.String("user_agent", request.UserAgent()),
			)
		})
	}
}

// # Rate Limiting

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

func newIPLimiter(requestsPerSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// reserve takes one token for ip. When the bucket is empty it returns false
// and the wait until the next token.
func (limiter *ipLimiter) reserve(ip string, now time.Time) (bool, time.Duration) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	entry, found := limiter.visitors[ip]
	if !found {
		entry = &visitor{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.visitors[ip] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep forgets clients idle since before cutoff.
func (limiter *ipLimiter) sweep(cutoff time.Time) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	for ip, entry := range limiter.visitors {
		if entry.lastSeen.Before(cutoff) {
			delete(limiter.visitors, ip)
		}
	}
}

// RateLimit limits requests per IP using the token bucket algorithm.
//
// This is the coarse, in-memory outer guard for every route. Login brute force
// is handled separately by the persistent per-IP attempt window in the auth core.
// The cleanup goroutine stops when context is cancelled.
func RateLimit(context context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(requestsPerSecond, burst)

	go func() {
		ticker := time.NewTicker(constants.RateLimitCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				limiter.sweep(now.Add(-constants.RateLimitClientTTL))
			case <-context.Done():
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			allowed, retryAfter := limiter.reserve(RealIP(request), time.Now())
			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				writer.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
				writeError(writer, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Reliability & Safety

// PanicRecovery recovers from panics, logs the stack trace, reports it to
// Sentry and returns 500.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				// chi's Timeout middleware and net/http use this sentinel to abort.
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "panic_recovered",
					slog.Any("error", recovered),
					slog.String("stack", string(stack)),
				)
				observability.CapturePanic(request.Context(), recovered, stack)

				writeError(writer, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # Cross-Origin Resource Sharing

// AppConfig defines the behavior needed by the CORS middleware.
type AppConfig interface {
	IsDevelopment() bool
	AllowedOrigins() []string
}

// CORS answers cross-origin requests from the portal front-ends.
//
// Cookies carry the session, so credentials are allowed and the request origin
// is echoed back; a wildcard is never sent. In development every origin passes.
func CORS(cfg AppConfig) func(http.Handler) http.Handler {
	allowed := cfg.AllowedOrigins()
	development := cfg.IsDevelopment()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get(constants.HeaderOrigin)
			if origin == "" {
				next.ServeHTTP(writer, request)
				return
			}

			header := writer.Header()
			header.Add("Vary", constants.HeaderOrigin)

			if development || slices.Contains(allowed, origin) {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				header.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization, X-Request-ID")
				header.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
				header.Set("Access-Control-Allow-Credentials", "true")
				header.Set("Access-Control-Max-Age", "300")
			}

			// Pre-flight
			if request.Method == http.MethodOptions && request.Header.Get("Access-Control-Request-Method") != "" {
				writer.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Middleware Helpers

// ProxyHeaders resolves the client origin once per request and stores it with
// [ctxutil.WithOrigin].
//
// X-Real-IP, X-Forwarded-For and X-Forwarded-Host are only read when the
// socket peer lies inside trusted. X-Forwarded-For is walked right to left,
// skipping hops that are themselves trusted proxies, so a client cannot
// choose its own address by prepending entries.
func ProxyHeaders(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := resolveOrigin(request, trusted)
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithOrigin(request.Context(), origin)))
		})
	}
}

func resolveOrigin(request *http.Request, trusted []netip.Prefix) ctxutil.Origin {
	peer, ok := socketAddr(request.RemoteAddr)
	if !ok {
		return ctxutil.Origin{IP: socketHost(request.RemoteAddr)}
	}
	if !isTrusted(peer, trusted) {
		return ctxutil.Origin{IP: peer.String()}
	}

	origin := ctxutil.Origin{IP: peer.String()}

	forwardedHost, _, _ := strings.Cut(request.Header.Get(constants.HeaderXForwardedHost), ",")
	origin.ForwardedHost = strings.TrimSpace(forwardedHost)

	if realIP, ok := parseAddr(request.Header.Get(constants.HeaderXRealIP)); ok {
		origin.IP = realIP.String()
		return origin
	}

	hops := strings.Split(request.Header.Get(constants.HeaderXForwardedFor), ",")
	for index := len(hops) - 1; index >= 0; index-- {
		hop, ok := parseAddr(hops[index])
		if !ok {
			break
		}
		origin.IP = hop.String()
		if !isTrusted(hop, trusted) {
			break
		}
	}

	return origin
}

// RealIP returns the client address resolved by [ProxyHeaders]. Without it
// the socket peer is the client; request headers are never consulted here.
func RealIP(request *http.Request) string {
	if origin, ok := ctxutil.GetOrigin(request.Context()); ok && origin.IP != "" {
		return origin.IP
	}
	if peer, ok := socketAddr(request.RemoteAddr); ok {
		return peer.String()
	}
	return socketHost(request.RemoteAddr)
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func socketAddr(remoteAddr string) (netip.Addr, bool) {
	return parseAddr(socketHost(remoteAddr))
}

func socketHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func parseAddr(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// writeError renders the standard error envelope for failures raised before
// a domain handler runs.
func writeError(writer http.ResponseWriter, status int, code, message string) {
	respond.JSON(writer, status, respond.ErrorEnvelope{Error: message, Code: code})
}
