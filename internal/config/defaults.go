package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:            "http://localhost:8000",
		RequestTimeoutSeconds: 30,
		OfflineCache:          true,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMS: 500,
			MaxDelayMS:  8000,
		},
		Breaker: BreakerConfig{
			FailureThreshold:    5,
			ResetTimeoutSeconds: 30,
		},
	}
}

// ResolveDataDir returns the effective data directory, falling back to
// ~/.orielfx when data_dir is not set.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".orielfx"), nil
}
