package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/splax/hydrobench/bench/internal/sensor"
	"github.com/splax/hydrobench/pkg/config"
	"github.com/splax/hydrobench/pkg/grpcx"
	"github.com/splax/hydrobench/pkg/httpx"
	"github.com/splax/hydrobench/pkg/hydrorpc"
	"github.com/splax/hydrobench/pkg/logger"
	"github.com/splax/hydrobench/pkg/netx"
)

func main() {
	cfg, err := config.LoadBenchConfig(os.Args[1:])
	if err != nil {
		logger.New("bench", slog.LevelInfo).Error("invalid arguments", "error", err, "usage", "bench <id> <port>")
		os.Exit(1)
	}
	log := logger.New("bench", logger.ParseLevel(cfg.LogLevel)).With("bench_id", cfg.ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lis, bound, err := netx.Bind(ctx, netx.OffsetPolicy(cfg.Host, cfg.Port), netx.WithLogger(log))
	if err != nil {
		log.Error("failed to bind", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	if bound.Port != cfg.Port {
		log.Warn("port in use, bound fallback", "requested", cfg.Port, "port", bound.Port)
	}

	svc := sensor.NewService(cfg.ID, log)
	srv := grpcx.NewServer(log)
	hydrorpc.RegisterBenchServer(srv, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("bench server starting", "addr", lis.Addr().String(), "port", bound.Port)
		return grpcx.Serve(gctx, log, srv, lis)
	})
	if cfg.MetricsAddr != "" {
		router := httpx.New(log, "bench")
		g.Go(func() error {
			return httpx.ListenAndServe(gctx, log, cfg.MetricsAddr, router)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("bench server stopped")
}
