package handler

import (
	"context"
	"fmt"
	"time"

	healthv1 "github.com/thependalorian/ketchup-smartpay-sub006/api/health/v1"
)

const checkTimeout = 2 * time.Second

// Pinger reports whether the token store database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports whether the device trust policy compiled. *trust.PolicyGate satisfies it.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements HealthService for readiness/liveness.
type Server struct {
	db     Pinger
	policy PolicyChecker
}

// NewServer returns a new Health gRPC server. Either dependency may be nil and is then skipped.
func NewServer(db Pinger, policy PolicyChecker) *Server {
	return &Server{db: db, policy: policy}
}

// HealthCheck returns SERVING when every configured dependency answers. Dependency
// failures are reported as NOT_SERVING rather than a gRPC error.
func (s *Server) HealthCheck(ctx context.Context, _ *healthv1.HealthCheckRequest) (*healthv1.HealthCheckResponse, error) {
	if err := s.Check(ctx); err != nil {
		return &healthv1.HealthCheckResponse{Status: healthv1.StatusNotServing}, nil
	}
	return &healthv1.HealthCheckResponse{Status: healthv1.StatusServing}, nil
}

// Check runs the dependency probes and returns the first failure. Used by the HTTP /healthz route too.
func (s *Server) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("device policy: %w", err)
		}
	}
	return nil
}
