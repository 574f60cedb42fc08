package config

const (
	DefaultCalculationPort     = 8060
	DefaultCalculationAttempts = 3
)

// CalculationConfig holds runtime configuration for the calculation service.
type CalculationConfig struct {
	Host         string
	BasePort     int
	BindAttempts int
	MetricsAddr  string
	LogLevel     string
}

// LoadCalculationConfig constructs a CalculationConfig from environment variables.
func LoadCalculationConfig() CalculationConfig {
	cfg := CalculationConfig{
		Host:         GetString("CALC_HOST", "0.0.0.0"),
		BasePort:     GetInt("CALC_PORT", DefaultCalculationPort),
		BindAttempts: GetInt("CALC_BIND_ATTEMPTS", DefaultCalculationAttempts),
		MetricsAddr:  GetString("METRICS_ADDR", ""),
		LogLevel:     GetString("LOG_LEVEL", "info"),
	}
	if cfg.BindAttempts <= 0 {
		cfg.BindAttempts = DefaultCalculationAttempts
	}
	return cfg
}
