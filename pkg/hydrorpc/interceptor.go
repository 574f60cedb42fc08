package hydrorpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDKey is the metadata key carrying a per-call correlation id.
const RequestIDKey = "x-request-id"

var histogramBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

var (
	metricsOnce    sync.Once
	serverHandled  *prometheus.CounterVec
	serverDuration *prometheus.HistogramVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		serverHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydrobench",
			Subsystem: "rpc",
			Name:      "server_handled_total",
			Help:      "Count of completed RPCs by method and status code",
		}, []string{"method", "code"})

		serverDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydrobench",
			Subsystem: "rpc",
			Name:      "server_handling_seconds",
			Help:      "Latency distribution of RPC handlers",
			Buckets:   histogramBuckets,
		}, []string{"method"})

		collectors := []prometheus.Collector{serverHandled, serverDuration}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch existing := already.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						serverHandled = existing
					case *prometheus.HistogramVec:
						serverDuration = existing
					}
				}
			}
		}
	})
}

// UnaryClientRequestID stamps outgoing calls with a request id unless the
// caller already set one.
func UnaryClientRequestID() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if md, ok := metadata.FromOutgoingContext(ctx); !ok || len(md.Get(RequestIDKey)) == 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, RequestIDKey, uuid.NewString())
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// RequestID returns the id attached to an incoming call, if any.
func RequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if ids := md.Get(RequestIDKey); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// UnaryServerInterceptor logs and measures every handled call.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	initMetrics()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)
		code := status.Code(err)

		serverHandled.With(prometheus.Labels{"method": info.FullMethod, "code": code.String()}).Inc()
		serverDuration.With(prometheus.Labels{"method": info.FullMethod}).Observe(elapsed.Seconds())

		if logger != nil {
			attrs := []any{"method", info.FullMethod, "code", code.String(), "duration", elapsed, "request_id", RequestID(ctx)}
			if err != nil {
				logger.Warn("rpc failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("rpc handled", attrs...)
			}
		}
		return resp, err
	}
}
