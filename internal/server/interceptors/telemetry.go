package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/metrics"
)

// RequestLogUnary returns a unary server interceptor that records a Prometheus sample and a structured
// log line per RPC. skipMethods (e.g. HealthCheck) are counted but not logged.
func RequestLogUnary(logger *zap.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)
		code := status.Code(err)

		metrics.RPCRequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
		metrics.RPCDuration.WithLabelValues(info.FullMethod).Observe(elapsed.Seconds())
		if skipMethods[info.FullMethod] {
			return resp, err
		}

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", elapsed),
			zap.String("client_ip", ClientIP(ctx)),
		}
		if c, ok := CallerFrom(ctx); ok {
			fields = append(fields, zap.String("caller", c.Subject), zap.String("role", string(c.Role)))
		}
		if err != nil {
			fields = append(fields, zap.String("error", status.Convert(err).Message()))
		}
		logger.Check(levelFor(code), "grpc request").Write(fields...)
		return resp, err
	}
}

func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK, codes.NotFound, codes.InvalidArgument, codes.AlreadyExists, codes.Canceled:
		return zapcore.InfoLevel
	case codes.Unauthenticated, codes.PermissionDenied, codes.FailedPrecondition:
		return zapcore.WarnLevel
	}
	return zapcore.ErrorLevel
}
