package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	collectorhttp "github.com/splax/hydrobench/collector/internal/http"
	"github.com/splax/hydrobench/collector/internal/orchestrator"
	"github.com/splax/hydrobench/collector/internal/publish"
	"github.com/splax/hydrobench/collector/internal/ws"
	"github.com/splax/hydrobench/pkg/config"
	"github.com/splax/hydrobench/pkg/httpx"
	"github.com/splax/hydrobench/pkg/logger"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = commandRun(args)
	case "once":
		err = commandOnce(args)
	case "validate":
		err = commandValidate(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(name string, args []string) (*config.CollectorConfig, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	path := fs.String("config", os.Getenv("COLLECTOR_CONFIG"), "Path to the collector YAML config")
	fs.Parse(args)
	cfg, err := config.LoadCollectorConfig(*path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setup registers every configured endpoint and the calculation service.
func setup(ctx context.Context, cfg *config.CollectorConfig, log *slog.Logger, opts ...orchestrator.Option) *orchestrator.Collector {
	base := []orchestrator.Option{
		orchestrator.WithProbeTimeout(cfg.ProbeTimeout),
		orchestrator.WithPollTimeout(cfg.PollTimeout),
		orchestrator.WithConcurrency(cfg.Concurrency),
	}
	if strings.TrimSpace(cfg.Publish.URL) != "" {
		emitter, err := publish.FromConfig(cfg.Publish, log)
		if err != nil {
			log.Warn("summary publishing disabled", "error", err)
		} else {
			base = append(base, orchestrator.WithSink(emitter))
		}
	}
	collector := orchestrator.New(log, append(base, opts...)...)

	for _, addr := range cfg.Endpoints {
		collector.RegisterEndpoint(ctx, addr)
	}
	if cfg.Calculation != "" {
		if _, err := collector.ConfigureCalculation(ctx, cfg.Calculation); err != nil {
			log.Warn("calculation service not configured", "address", cfg.Calculation, "error", err)
		}
	}
	return collector
}

func commandRun(args []string) error {
	cfg, err := loadConfig("run", args)
	if err != nil {
		return err
	}
	log := logger.New("collector", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		hub  *ws.Hub
		opts []orchestrator.Option
	)
	if cfg.DisableFeed {
		log.Info("live feed disabled")
	} else {
		hub = ws.NewHub()
		defer hub.Close()
		opts = append(opts, orchestrator.WithSink(ws.NewFeed(hub, log)))
	}

	collector := setup(ctx, cfg, log, opts...)
	defer func() {
		if err := collector.Close(); err != nil {
			log.Warn("closing channels", "error", err)
		}
	}()

	router := collectorhttp.New(log, collector, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpx.ListenAndServe(gctx, log, cfg.HTTPAddr, router)
	})
	g.Go(func() error {
		collector.Run(gctx, cfg.PollInterval)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("collector stopped")
	return nil
}

func commandOnce(args []string) error {
	cfg, err := loadConfig("once", args)
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(os.Stderr, "collector", logger.ParseLevel(cfg.LogLevel), false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := setup(ctx, cfg, log)
	defer collector.Close()

	result := collector.CollectAll(ctx)
	output := map[string]any{
		"collection": result,
		"endpoints":  collector.Endpoints(),
	}
	summaries, err := collector.ComputeMetrics(ctx)
	if err != nil {
		output["error"] = err.Error()
	} else {
		output["summaries"] = summaries
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(output); encErr != nil {
		return fmt.Errorf("write output: %w", encErr)
	}
	if err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}
	return nil
}

func commandValidate(args []string) error {
	cfg, err := loadConfig("validate", args)
	if err != nil {
		return err
	}
	fmt.Printf("config ok: %d endpoint(s), calculation %q, interval %s, concurrency %d\n",
		len(cfg.Endpoints), cfg.Calculation, cfg.PollInterval, cfg.Concurrency)
	return nil
}

func printUsage() {
	fmt.Printf("hydrobench collector %s\n\n", buildVersion)
	fmt.Print(`Usage:
	collector run [--config collector.yaml]
	collector once [--config collector.yaml]
	collector validate [--config collector.yaml]
	collector version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
