package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetDurationFallsBackOnInvalid(t *testing.T) {
	t.Setenv("HYDRO_TEST_DURATION", "soon")
	if got := GetDuration("HYDRO_TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("expected fallback 1s, got %s", got)
	}
	t.Setenv("HYDRO_TEST_DURATION", "250ms")
	if got := GetDuration("HYDRO_TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
}

func TestGetListDropsBlanks(t *testing.T) {
	t.Setenv("HYDRO_TEST_LIST", " a:1, ,b:2,")
	got := GetList("HYDRO_TEST_LIST")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress("192.168.1.100", 8060); got != "192.168.1.100:8060" {
		t.Fatalf("expected default port appended, got %s", got)
	}
	if got := NormalizeAddress(" localhost:9000 ", 8060); got != "localhost:9000" {
		t.Fatalf("expected address kept, got %s", got)
	}
	if got := NormalizeAddress("", 8060); got != "" {
		t.Fatalf("expected empty address, got %s", got)
	}
}

func TestLoadBenchConfigFromArgs(t *testing.T) {
	cfg, err := LoadBenchConfig([]string{"bench-7", "50070"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "bench-7" || cfg.Port != 50070 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadBenchConfigDefaults(t *testing.T) {
	cfg, err := LoadBenchConfig(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != DefaultBenchID || cfg.Port != DefaultBenchPort {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadBenchConfigRejectsNonNumericPort(t *testing.T) {
	_, err := LoadBenchConfig([]string{"bench-1", "abc"})
	if !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort, got %v", err)
	}
}

func TestLoadCalculationConfigDefaults(t *testing.T) {
	t.Setenv("CALC_BIND_ATTEMPTS", "0")
	cfg := LoadCalculationConfig()
	if cfg.BasePort != 8060 {
		t.Fatalf("expected base port 8060, got %d", cfg.BasePort)
	}
	if cfg.BindAttempts != 3 {
		t.Fatalf("expected 3 bind attempts, got %d", cfg.BindAttempts)
	}
}

func TestLoadCollectorConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collector.yaml")

	data := `
endpoints:
  - localhost:50051
  - 10.0.0.7
calculation: localhost
poll_interval: 10s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadCollectorConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Endpoints[1] != "10.0.0.7:50051" {
		t.Fatalf("expected bench default port, got %s", cfg.Endpoints[1])
	}
	if cfg.Calculation != "localhost:8060" {
		t.Fatalf("expected calculation default port, got %s", cfg.Calculation)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("expected poll interval 10s, got %s", cfg.PollInterval)
	}
	if cfg.ProbeTimeout != 3*time.Second || cfg.PollTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts probe=%s poll=%s", cfg.ProbeTimeout, cfg.PollTimeout)
	}
	if cfg.Concurrency != 1 {
		t.Fatalf("expected sequential polling by default, got %d", cfg.Concurrency)
	}
	if cfg.HTTPAddr != ":8070" {
		t.Fatalf("expected default http addr, got %s", cfg.HTTPAddr)
	}
}

func TestLoadCollectorConfigEnvOverrides(t *testing.T) {
	t.Setenv("COLLECTOR_ENDPOINTS", "a:1,b:2")
	t.Setenv("COLLECTOR_CALCULATION_ADDR", "calc:9000")
	cfg, err := LoadCollectorConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Endpoints) != 2 || cfg.Endpoints[0] != "a:1" {
		t.Fatalf("unexpected endpoints %v", cfg.Endpoints)
	}
	if cfg.Calculation != "calc:9000" {
		t.Fatalf("unexpected calculation %s", cfg.Calculation)
	}
}

func TestLoadCollectorConfigRejectsBadPublishURL(t *testing.T) {
	t.Setenv("COLLECTOR_PUBLISH_URL", "ftp://example.com")
	if _, err := LoadCollectorConfig(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadCollectorConfigRejectsBadConcurrency(t *testing.T) {
	t.Setenv("COLLECTOR_CONCURRENCY", "-2")
	if _, err := LoadCollectorConfig(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadCollectorConfigFeedAndPublishOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collector.yaml")
	data := `
disable_feed: false
publish:
  url: http://hooks.local/summaries
  timeout: 2s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadCollectorConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DisableFeed || cfg.Publish.Timeout != 2*time.Second {
		t.Fatalf("unexpected file values feed=%v timeout=%s", cfg.DisableFeed, cfg.Publish.Timeout)
	}

	t.Setenv("COLLECTOR_DISABLE_FEED", "true")
	t.Setenv("COLLECTOR_PUBLISH_TIMEOUT", "750ms")
	cfg, err = LoadCollectorConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.DisableFeed {
		t.Fatal("expected COLLECTOR_DISABLE_FEED to disable the feed")
	}
	if cfg.Publish.Timeout != 750*time.Millisecond {
		t.Fatalf("expected env publish timeout, got %s", cfg.Publish.Timeout)
	}

	t.Setenv("COLLECTOR_DISABLE_FEED", "maybe")
	cfg, err = LoadCollectorConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DisableFeed {
		t.Fatal("expected an unparsable toggle to keep the file value")
	}
}
