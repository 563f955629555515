// Package devicev1 is the namqr.device.v1 DeviceService for managing the terminal registry
// consulted by the device trust gate.
package devicev1

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/thependalorian/ketchup-smartpay-sub006/api/rpc"
)

const ServiceName = "namqr.device.v1.DeviceService"

const (
	DeviceService_RegisterDevice_FullMethodName  = "/" + ServiceName + "/RegisterDevice"
	DeviceService_GetDevice_FullMethodName       = "/" + ServiceName + "/GetDevice"
	DeviceService_ListDevices_FullMethodName     = "/" + ServiceName + "/ListDevices"
	DeviceService_SuspendDevice_FullMethodName   = "/" + ServiceName + "/SuspendDevice"
	DeviceService_ReinstateDevice_FullMethodName = "/" + ServiceName + "/ReinstateDevice"
	DeviceService_RevokeDevice_FullMethodName    = "/" + ServiceName + "/RevokeDevice"
	DeviceService_RecordHeartbeat_FullMethodName = "/" + ServiceName + "/RecordHeartbeat"
)

type Device struct {
	DeviceID    string     `json:"device_id"`
	MerchantID  string     `json:"merchant_id"`
	Channel     string     `json:"channel"`
	Label       string     `json:"label,omitempty"`
	Status      string     `json:"status"`
	SuspendedAt *time.Time `json:"suspended_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RegisterDeviceRequest adds a terminal. DeviceID is generated when empty.
type RegisterDeviceRequest struct {
	DeviceID   string `json:"device_id,omitempty"`
	MerchantID string `json:"merchant_id"`
	Channel    string `json:"channel"`
	Label      string `json:"label,omitempty"`
}

type RegisterDeviceResponse struct {
	Device *Device `json:"device"`
}

type GetDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type GetDeviceResponse struct {
	Device *Device `json:"device"`
}

type ListDevicesRequest struct {
	MerchantID string `json:"merchant_id"`
}

type ListDevicesResponse struct {
	Devices []*Device `json:"devices"`
}

// DeviceRequest addresses a single device for a state change.
type DeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type DeviceResponse struct {
	Device *Device `json:"device"`
}

type DeviceServiceServer interface {
	RegisterDevice(context.Context, *RegisterDeviceRequest) (*RegisterDeviceResponse, error)
	GetDevice(context.Context, *GetDeviceRequest) (*GetDeviceResponse, error)
	ListDevices(context.Context, *ListDevicesRequest) (*ListDevicesResponse, error)
	SuspendDevice(context.Context, *DeviceRequest) (*DeviceResponse, error)
	ReinstateDevice(context.Context, *DeviceRequest) (*DeviceResponse, error)
	RevokeDevice(context.Context, *DeviceRequest) (*DeviceResponse, error)
	RecordHeartbeat(context.Context, *DeviceRequest) (*DeviceResponse, error)
}

var DeviceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DeviceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "RegisterDevice", DeviceServiceServer.RegisterDevice),
		rpc.Unary(ServiceName, "GetDevice", DeviceServiceServer.GetDevice),
		rpc.Unary(ServiceName, "ListDevices", DeviceServiceServer.ListDevices),
		rpc.Unary(ServiceName, "SuspendDevice", DeviceServiceServer.SuspendDevice),
		rpc.Unary(ServiceName, "ReinstateDevice", DeviceServiceServer.ReinstateDevice),
		rpc.Unary(ServiceName, "RevokeDevice", DeviceServiceServer.RevokeDevice),
		rpc.Unary(ServiceName, "RecordHeartbeat", DeviceServiceServer.RecordHeartbeat),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "namqr/device/v1",
}

func RegisterDeviceServiceServer(s grpc.ServiceRegistrar, srv DeviceServiceServer) {
	s.RegisterService(&DeviceService_ServiceDesc, srv)
}

type DeviceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDeviceServiceClient(cc grpc.ClientConnInterface) *DeviceServiceClient {
	return &DeviceServiceClient{cc: cc}
}

func (c *DeviceServiceClient) RegisterDevice(ctx context.Context, in *RegisterDeviceRequest, opts ...grpc.CallOption) (*RegisterDeviceResponse, error) {
	return rpc.Invoke[RegisterDeviceRequest, RegisterDeviceResponse](ctx, c.cc, DeviceService_RegisterDevice_FullMethodName, in, opts...)
}

func (c *DeviceServiceClient) GetDevice(ctx context.Context, in *GetDeviceRequest, opts ...grpc.CallOption) (*GetDeviceResponse, error) {
	return rpc.Invoke[GetDeviceRequest, GetDeviceResponse](ctx, c.cc, DeviceService_GetDevice_FullMethodName, in, opts...)
}

func (c *DeviceServiceClient) ListDevices(ctx context.Context, in *ListDevicesRequest, opts ...grpc.CallOption) (*ListDevicesResponse, error) {
	return rpc.Invoke[ListDevicesRequest, ListDevicesResponse](ctx, c.cc, DeviceService_ListDevices_FullMethodName, in, opts...)
}

func (c *DeviceServiceClient) SuspendDevice(ctx context.Context, in *DeviceRequest, opts ...grpc.CallOption) (*DeviceResponse, error) {
	return rpc.Invoke[DeviceRequest, DeviceResponse](ctx, c.cc, DeviceService_SuspendDevice_FullMethodName, in, opts...)
}

func (c *DeviceServiceClient) ReinstateDevice(ctx context.Context, in *DeviceRequest, opts ...grpc.CallOption) (*DeviceResponse, error) {
	return rpc.Invoke[DeviceRequest, DeviceResponse](ctx, c.cc, DeviceService_ReinstateDevice_FullMethodName, in, opts...)
}

func (c *DeviceServiceClient) RevokeDevice(ctx context.Context, in *DeviceRequest, opts ...grpc.CallOption) (*DeviceResponse, error) {
	return rpc.Invoke[DeviceRequest, DeviceResponse](ctx, c.cc, DeviceService_RevokeDevice_FullMethodName, in, opts...)
}

func (c *DeviceServiceClient) RecordHeartbeat(ctx context.Context, in *DeviceRequest, opts ...grpc.CallOption) (*DeviceResponse, error) {
	return rpc.Invoke[DeviceRequest, DeviceResponse](ctx, c.cc, DeviceService_RecordHeartbeat_FullMethodName, in, opts...)
}
