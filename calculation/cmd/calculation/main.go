package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/splax/hydrobench/calculation/internal/service/aggregate"
	"github.com/splax/hydrobench/pkg/config"
	"github.com/splax/hydrobench/pkg/grpcx"
	"github.com/splax/hydrobench/pkg/httpx"
	"github.com/splax/hydrobench/pkg/hydrorpc"
	"github.com/splax/hydrobench/pkg/logger"
	"github.com/splax/hydrobench/pkg/netx"
)

func main() {
	cfg := config.LoadCalculationConfig()
	log := logger.New("calculation", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := netx.BoundedPolicy(cfg.Host, cfg.BasePort, cfg.BindAttempts)
	lis, bound, err := netx.Bind(ctx, policy, netx.WithLogger(log))
	if err != nil {
		log.Error("no port available", "error", err,
			"first_port", cfg.BasePort, "last_port", cfg.BasePort+cfg.BindAttempts-1)
		os.Exit(1)
	}

	srv := grpcx.NewServer(log)
	hydrorpc.RegisterCalculationServer(srv, aggregate.NewService(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("calculation server starting", "addr", lis.Addr().String(), "port", bound.Port, "attempts", len(bound.Attempts))
		return grpcx.Serve(gctx, log, srv, lis)
	})
	if cfg.MetricsAddr != "" {
		router := httpx.New(log, "calculation")
		g.Go(func() error {
			return httpx.ListenAndServe(gctx, log, cfg.MetricsAddr, router)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("calculation server stopped")
}
