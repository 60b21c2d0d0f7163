package httpmw

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ClientIPOptions controls how much of the X-Forwarded-For chain is
// believed.
type ClientIPOptions struct {
	// TrustedHops is how many reverse proxies sit between the client and
	// this process. 0 means none: forwarded headers are ignored outright.
	// 1 trusts the rightmost X-Forwarded-For entry (single load balancer),
	// 2 the one before it (CDN in front of the balancer), and so on.
	TrustedHops int
}

// ClientIP is ClientIPWithOptions with no trusted proxies.
func ClientIP(next http.Handler) http.Handler {
	return ClientIPWithOptions(ClientIPOptions{})(next)
}

// ClientIPWithOptions resolves the real client address for each request and
// stores it in the context, where the rate limiter and access log pick it
// up.
func ClientIPWithOptions(opts ClientIPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, opts.TrustedHops)
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
		})
	}
}

// resolveClientIP picks the client address from RemoteAddr and, when
// allowed, X-Forwarded-For. Forwarded headers are only consulted when the
// direct peer is a private address (our own infrastructure) and trustedHops
// is positive; in every other case they are stripped so nothing downstream
// trusts them by accident. A chain shorter than the configured hop count is
// treated as forged and ignored.
func resolveClientIP(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		return "0.0.0.0"
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return "0.0.0.0"
	}

	if !peer.IsPrivate() || trustedHops <= 0 {
		stripForwardHeaders(r)
		return host
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return host
	}

	entries := strings.Split(xff, ",")
	idx := len(entries) - trustedHops
	if idx < 0 {
		// chain shorter than the proxy count, fail closed
		stripForwardHeaders(r)
		return host
	}
	if candidate := strings.TrimSpace(entries[idx]); net.ParseIP(candidate) != nil {
		return candidate
	}
	return host
}

func stripForwardHeaders(r *http.Request) {
	r.Header.Del("X-Forwarded-For")
	r.Header.Del("X-Forwarded-Proto")
}

// WithClientIP stores ip on the context; empty ip is a no-op.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the resolved client IP, or "" when the
// middleware did not run.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
