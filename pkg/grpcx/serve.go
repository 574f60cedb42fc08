// Package grpcx runs gRPC servers with the process lifecycle shared by every
// hydrobench binary.
package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/splax/hydrobench/pkg/hydrorpc"
)

const shutdownTimeout = 10 * time.Second

// NewServer returns a gRPC server with logging and metrics interceptors.
func NewServer(logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(hydrorpc.UnaryServerInterceptor(logger)),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// Serve runs srv on lis until ctx is cancelled, then stops gracefully. A
// serve error is returned as is.
func Serve(ctx context.Context, logger *slog.Logger, srv *grpc.Server, lis net.Listener) error {
	errorCh := make(chan error, 1)
	go func() {
		errorCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			logger.Error("graceful shutdown timed out")
			srv.Stop()
		}
		return nil
	case err := <-errorCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	}
}
