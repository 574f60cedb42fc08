package hydrorpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	BenchServiceName    = "bench.BenchService"
	benchSendDataMethod = "/bench.BenchService/SendData"
)

// BenchServer is implemented by sensor benches.
type BenchServer interface {
	SendData(ctx context.Context, in *Empty) (*Reading, error)
}

// RegisterBenchServer attaches srv to s.
func RegisterBenchServer(s grpc.ServiceRegistrar, srv BenchServer) {
	s.RegisterService(&BenchServiceDesc, srv)
}

func benchSendDataHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BenchServer).SendData(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: benchSendDataMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BenchServer).SendData(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// BenchServiceDesc describes bench.BenchService.
var BenchServiceDesc = grpc.ServiceDesc{
	ServiceName: BenchServiceName,
	HandlerType: (*BenchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendData", Handler: benchSendDataHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bench.proto",
}

// BenchClient calls bench.BenchService.
type BenchClient struct {
	cc grpc.ClientConnInterface
}

// NewBenchClient wraps an open channel.
func NewBenchClient(cc grpc.ClientConnInterface) *BenchClient {
	return &BenchClient{cc: cc}
}

// SendData asks the bench for a fresh reading.
func (c *BenchClient) SendData(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Reading, error) {
	if in == nil {
		in = &Empty{}
	}
	out := new(Reading)
	if err := c.cc.Invoke(ctx, benchSendDataMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
