// Package rpc holds the pieces shared by the hand-written gRPC service descriptors:
// a JSON wire codec and a helper that builds unary method handlers.
package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of JSONCodec.
const CodecName = "json"

// JSONCodec marshals gRPC messages as JSON. Servers force it with grpc.ForceServerCodec;
// clients select it with grpc.ForceCodec or grpc.CallContentSubtype(CodecName).
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// Unary returns the MethodDesc for a unary method of service whose server type is S.
func Unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Invoke calls a unary method on cc and decodes the reply into a new Resp.
func Invoke[Req any, Resp any](ctx context.Context, cc grpc.ClientConnInterface, fullMethod string, in *Req, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
