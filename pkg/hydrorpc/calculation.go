package hydrorpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	CalculationServiceName   = "calculation.CalculationService"
	calculationComputeMethod = "/calculation.CalculationService/ComputeMetrics"
)

// CalculationServer is implemented by the calculation service.
type CalculationServer interface {
	ComputeMetrics(ctx context.Context, in *ReadingBatch) (*SummaryBatch, error)
}

// RegisterCalculationServer attaches srv to s.
func RegisterCalculationServer(s grpc.ServiceRegistrar, srv CalculationServer) {
	s.RegisterService(&CalculationServiceDesc, srv)
}

func calculationComputeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadingBatch)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculationServer).ComputeMetrics(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: calculationComputeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalculationServer).ComputeMetrics(ctx, req.(*ReadingBatch))
	}
	return interceptor(ctx, in, info, handler)
}

// CalculationServiceDesc describes calculation.CalculationService.
var CalculationServiceDesc = grpc.ServiceDesc{
	ServiceName: CalculationServiceName,
	HandlerType: (*CalculationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputeMetrics", Handler: calculationComputeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calculation.proto",
}

// CalculationClient calls calculation.CalculationService.
type CalculationClient struct {
	cc grpc.ClientConnInterface
}

// NewCalculationClient wraps an open channel.
func NewCalculationClient(cc grpc.ClientConnInterface) *CalculationClient {
	return &CalculationClient{cc: cc}
}

// ComputeMetrics sends a batch and returns the per-source summaries.
func (c *CalculationClient) ComputeMetrics(ctx context.Context, in *ReadingBatch, opts ...grpc.CallOption) (*SummaryBatch, error) {
	if in == nil {
		in = &ReadingBatch{}
	}
	out := new(SummaryBatch)
	if err := c.cc.Invoke(ctx, calculationComputeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
