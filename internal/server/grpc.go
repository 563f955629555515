// Package server assembles the gRPC and HTTP listeners of the NAMQR token service.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	devicev1 "github.com/thependalorian/ketchup-smartpay-sub006/api/device/v1"
	healthv1 "github.com/thependalorian/ketchup-smartpay-sub006/api/health/v1"
	"github.com/thependalorian/ketchup-smartpay-sub006/api/rpc"
	tokenv1 "github.com/thependalorian/ketchup-smartpay-sub006/api/token/v1"

	devicehandler "github.com/thependalorian/ketchup-smartpay-sub006/internal/device/handler"
	devicerepo "github.com/thependalorian/ketchup-smartpay-sub006/internal/device/repository"
	healthhandler "github.com/thependalorian/ketchup-smartpay-sub006/internal/health/handler"
	tokenhandler "github.com/thependalorian/ketchup-smartpay-sub006/internal/token/handler"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Tokens is the redemption coordinator. If nil, token RPCs return Unimplemented.
	Tokens tokenhandler.Service
	// Devices is the terminal registry for DeviceService. If nil, device RPCs return Unimplemented.
	Devices devicerepo.Repository
	// DeviceCache is invalidated on device state changes. Nil when no trust cache is configured.
	DeviceCache devicehandler.Invalidator
	// Health runs the readiness probes for HealthService. If nil, HealthCheck always reports SERVING.
	Health *healthhandler.Server
	// Logger is used by handlers that log state changes. Nil means no logging.
	Logger *zap.Logger
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - TokenService  → internal/token/handler
//   - DeviceService → internal/device/handler
//   - HealthService → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	tokenv1.RegisterTokenServiceServer(s, tokenhandler.NewServer(deps.Tokens))
	devicev1.RegisterDeviceServiceServer(s, devicehandler.NewServer(deps.Devices, deps.DeviceCache, deps.Logger))
	health := deps.Health
	if health == nil {
		health = healthhandler.NewServer(nil, nil)
	}
	healthv1.RegisterHealthServiceServer(s, health)
}

// NewGRPCServer returns a server that speaks the JSON codec, records OpenTelemetry spans
// and runs the given unary interceptors in order.
func NewGRPCServer(unary ...grpc.UnaryServerInterceptor) *grpc.Server {
	return grpc.NewServer(
		grpc.ForceServerCodec(rpc.JSONCodec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
	)
}

// PublicMethods are callable without a caller token.
var PublicMethods = map[string]bool{
	healthv1.HealthService_HealthCheck_FullMethodName: true,
}
