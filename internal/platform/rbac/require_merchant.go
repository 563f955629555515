package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
)

// RequireMerchant ensures the caller may act for merchantID: a merchant only for its own id,
// an operator for any.
func RequireMerchant(ctx context.Context, merchantID string) (security.Caller, error) {
	c, err := RequireRole(ctx, security.RoleMerchant)
	if err != nil {
		return security.Caller{}, err
	}
	if c.Role == security.RoleMerchant && c.MerchantID != merchantID {
		return security.Caller{}, status.Error(codes.PermissionDenied, "caller may not act for this merchant")
	}
	return c, nil
}
