// Package healthv1 is the namqr.health.v1 HealthService used by load balancers and orchestrators.
package healthv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/thependalorian/ketchup-smartpay-sub006/api/rpc"
)

const ServiceName = "namqr.health.v1.HealthService"

const HealthService_HealthCheck_FullMethodName = "/" + ServiceName + "/HealthCheck"

const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Status string `json:"status"`
}

type HealthServiceServer interface {
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

var HealthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HealthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "HealthCheck", HealthServiceServer.HealthCheck),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "namqr/health/v1",
}

func RegisterHealthServiceServer(s grpc.ServiceRegistrar, srv HealthServiceServer) {
	s.RegisterService(&HealthService_ServiceDesc, srv)
}

type HealthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewHealthServiceClient(cc grpc.ClientConnInterface) *HealthServiceClient {
	return &HealthServiceClient{cc: cc}
}

func (c *HealthServiceClient) HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	return rpc.Invoke[HealthCheckRequest, HealthCheckResponse](ctx, c.cc, HealthService_HealthCheck_FullMethodName, in, opts...)
}
