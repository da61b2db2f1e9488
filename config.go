package sqooler

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names understood by LoadConfig.
const (
	EnvPrivateJWK   = "PRIVATE_JWK_STR"
	EnvQueueTimeout = "QUEUE_TIMEOUT"
	EnvPollInterval = "POLL_INTERVAL"
)

// Config holds the deployment settings shared by the storage domain layer
// and the worker loop.
type Config struct {
	// QueueTimeout is how long a backend may go without polling its queue
	// before its operational status turns false.
	QueueTimeout time.Duration

	// PollInterval is how long the worker loop sleeps between queue polls.
	PollInterval time.Duration

	// PrivateJWK is the base64url-encoded private signing key of this
	// deployment. Empty when the deployment does not sign.
	PrivateJWK string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueTimeout: 300 * time.Second,
		PollInterval: 200 * time.Millisecond,
	}
}

// LoadConfig reads the configuration from the environment, optionally
// seeded from a .env file. A missing .env file is not an error; the
// environment alone is enough.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("sqooler: load %s: %w", envFile, err)
			}
		}
	}

	cfg := DefaultConfig()
	cfg.PrivateJWK = os.Getenv(EnvPrivateJWK)

	var err error
	if cfg.QueueTimeout, err = getEnvDuration(EnvQueueTimeout, cfg.QueueTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = getEnvDuration(EnvPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// getEnvDuration reads a duration ("300s", "1m30s") from the environment,
// falling back to a default when the variable is unset.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("sqooler: parse %s=%q: %w", key, value, err)
	}
	return d, nil
}
