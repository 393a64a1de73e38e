package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
)

// Admitter decides whether a client may proceed on a route.
type Admitter interface {
	Admit(ctx context.Context, route, client string) goSession.RateDecision
}

// RateGate admits requests through admitter under route, keyed by client IP.
// Denied requests get 429 with a Retry-After header in whole seconds. Admitted
// requests carry the client IP and User-Agent in their context.
func RateGate(admitter Admitter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			ctx := goSession.WithClientIP(r.Context(), ip)
			ctx = goSession.WithUserAgent(ctx, r.UserAgent())

			if admitter != nil {
				decision := admitter.Admit(ctx, route, ip)
				if !decision.Allowed {
					w.Header().Set("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds(), 10))
					WriteError(w, http.StatusTooManyRequests, "Too many requests")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the host part of the remote address. Forwarding headers are
// not consulted; behind a trusted proxy mount chi's RealIP ahead of the gate so
// RemoteAddr already holds the forwarded address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
