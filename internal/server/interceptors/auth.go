package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
)

const bearerPrefix = "bearer "

// CallerValidator validates a bearer token. *security.TokenProvider implements it.
type CallerValidator interface {
	Validate(token string) (security.Caller, error)
}

// AuthUnary returns a unary server interceptor that validates the Bearer token from gRPC metadata
// and stores the caller in context. publicMethods is the set of full method names that do not
// require a token (e.g. HealthService HealthCheck); a valid token on them is still honored.
func AuthUnary(tokens CallerValidator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		public := publicMethods[info.FullMethod]
		token := extractBearer(ctx)
		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		caller, err := tokens.Validate(token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		return handler(WithCaller(ctx, caller), req)
	}
}

// AnonymousUnary attaches caller to every request. It replaces AuthUnary in development
// when no JWT public key is configured.
func AnonymousUnary(caller security.Caller) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return handler(WithCaller(ctx, caller), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
