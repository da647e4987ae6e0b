package config

// RetryConfig controls the exponential-backoff retry policy for API calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" koanf:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms" koanf:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms" koanf:"max_delay_ms"`
}

// BreakerConfig controls the per-endpoint circuit breaker.
type BreakerConfig struct {
	FailureThreshold    int `yaml:"failure_threshold" koanf:"failure_threshold"`
	ResetTimeoutSeconds int `yaml:"reset_timeout_seconds" koanf:"reset_timeout_seconds"`
}

// Config is the top-level orielfx configuration, corresponding to .orielfx.yml.
type Config struct {
	APIBaseURL            string        `yaml:"api_base_url" koanf:"api_base_url"`
	RequestTimeoutSeconds int           `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
	DataDir               string        `yaml:"data_dir" koanf:"data_dir"`
	OfflineCache          bool          `yaml:"offline_cache" koanf:"offline_cache"`
	Retry                 RetryConfig   `yaml:"retry" koanf:"retry"`
	Breaker               BreakerConfig `yaml:"breaker" koanf:"breaker"`
}
