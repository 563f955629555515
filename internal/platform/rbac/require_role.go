// Package rbac enforces which caller roles may call an RPC and on whose behalf.
package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/server/interceptors"
)

// RequireRole ensures the caller is authenticated and holds one of roles. Operators always pass.
// Returns the caller on success; returns a gRPC error (Unauthenticated or PermissionDenied) on failure.
func RequireRole(ctx context.Context, roles ...security.Role) (security.Caller, error) {
	c, ok := interceptors.CallerFrom(ctx)
	if !ok || c.Subject == "" {
		return security.Caller{}, status.Error(codes.Unauthenticated, "caller identity required")
	}
	if c.Role == security.RoleOperator {
		return c, nil
	}
	for _, r := range roles {
		if c.Role == r {
			return c, nil
		}
	}
	return security.Caller{}, status.Error(codes.PermissionDenied, "caller role not permitted")
}
