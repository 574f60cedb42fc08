package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultBenchID   = "bench-test"
	DefaultBenchPort = 50051
)

// ErrInvalidPort is returned when a port argument is not a number.
var ErrInvalidPort = errors.New("port must be a number")

// BenchConfig holds runtime configuration for a sensor bench.
type BenchConfig struct {
	ID          string
	Host        string
	Port        int
	MetricsAddr string
	LogLevel    string
}

// LoadBenchConfig reads identity and port from the first two process
// arguments, falling back to BENCH_ID / BENCH_PORT and then the defaults.
func LoadBenchConfig(args []string) (BenchConfig, error) {
	cfg := BenchConfig{
		ID:          GetString("BENCH_ID", DefaultBenchID),
		Host:        GetString("BENCH_HOST", "0.0.0.0"),
		Port:        GetInt("BENCH_PORT", DefaultBenchPort),
		MetricsAddr: GetString("METRICS_ADDR", ""),
		LogLevel:    GetString("LOG_LEVEL", "info"),
	}
	if len(args) >= 2 {
		port, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil {
			return BenchConfig{}, fmt.Errorf("%w: %q", ErrInvalidPort, args[1])
		}
		cfg.ID = strings.TrimSpace(args[0])
		cfg.Port = port
	}
	if cfg.ID == "" {
		cfg.ID = DefaultBenchID
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return BenchConfig{}, fmt.Errorf("%w: %d out of range", ErrInvalidPort, cfg.Port)
	}
	return cfg, nil
}
