package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
)

type contextKey struct{ name string }

var callerKey = contextKey{"caller"}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, c security.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFrom returns the caller set by AuthUnary and true, or the zero Caller and false.
func CallerFrom(ctx context.Context) (security.Caller, bool) {
	c, ok := ctx.Value(callerKey).(security.Caller)
	return c, ok
}

// ClientIP returns the client address from x-forwarded-for, x-real-ip or the peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			s, _, _ := strings.Cut(vals[0], ",")
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
