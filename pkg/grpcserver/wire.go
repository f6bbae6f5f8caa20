// Copyright 2025 Astria Sequencer Contributors
//
// Hand-written service registration standing in for protoc-gen-go-grpc
// output, paired with a JSON wire codec (real protobuf generation is out
// of scope per §1) so the handlers below need no generated message
// types to satisfy grpc's codec interface.

package grpcserver

import (
	"context"
	"encoding/json"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "astria.sequencer.v1.SequencerService"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json, used in place of the protobuf wire codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

func handler(name string, invoke func(ctx context.Context, dec func(interface{}) error) (interface{}, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			if interceptor == nil {
				return invoke(ctx, dec)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			return interceptor(ctx, nil, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
				return invoke(ctx, dec)
			})
		},
	}
}

// RegisterSequencerServiceServer binds an implementation to s, the way
// protoc-gen-go-grpc's generated Register<Service>Server would.
func RegisterSequencerServiceServer(s *grpc.Server, srv SequencerServiceServer) {
	desc := grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*SequencerServiceServer)(nil),
		Metadata:    "sequencer.proto",
	}
	desc.Methods = []grpc.MethodDesc{
		handler("GetSequencerBlock", func(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
			req := new(GetSequencerBlockRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			return srv.GetSequencerBlock(ctx, req)
		}),
		handler("GetFilteredSequencerBlock", func(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
			req := new(GetFilteredSequencerBlockRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			return srv.GetFilteredSequencerBlock(ctx, req)
		}),
		handler("GetPendingNonce", func(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
			req := new(GetPendingNonceRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			return srv.GetPendingNonce(ctx, req)
		}),
		handler("GetUpgradesInfo", func(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
			req := new(GetUpgradesInfoRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			return srv.GetUpgradesInfo(ctx, req)
		}),
		handler("GetValidatorName", func(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
			req := new(GetValidatorNameRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			return srv.GetValidatorName(ctx, req)
		}),
	}
	s.RegisterService(&desc, srv)
}


// NewServer builds a *grpc.Server with srv registered as the
// SequencerService implementation, the standard gRPC health service
// registered and marked serving (grounded on erigon's direct
// google.golang.org/grpc dependency), and reflection enabled for
// grpcurl-style debugging.
func NewServer(srv SequencerServiceServer) *grpc.Server {
	s := grpc.NewServer()
	RegisterSequencerServiceServer(s, srv)

	h := health.NewServer()
	h.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, h)

	reflection.Register(s)
	return s
}

// Serve blocks accepting connections on lis until it closes or errors.
func Serve(s *grpc.Server, lis net.Listener) error {
	return s.Serve(lis)
}
