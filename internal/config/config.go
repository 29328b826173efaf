package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds configuration shared by the chain-indexer and minter binaries.
type Config struct {
	DBPath    string `envconfig:"DOGEBRIDGE_DB_PATH" default:"./data/dogebridge.sqlite"`
	StorePath string `envconfig:"DOGEBRIDGE_STORE_PATH" default:"./data/dogebridge.bolt"`
	Port      int    `envconfig:"DOGEBRIDGE_PORT" default:"8090"`
	LogLevel  string `envconfig:"DOGEBRIDGE_LOG_LEVEL" default:"info"`
	LogDir    string `envconfig:"DOGEBRIDGE_LOG_DIR" default:"./logs"`
	Network   string `envconfig:"DOGEBRIDGE_NETWORK" default:"testnet"`

	RPCURL      string `envconfig:"DOGEBRIDGE_RPC_URL"`
	RPCAuth     string `envconfig:"DOGEBRIDGE_RPC_AUTH"`
	KMSKeyName  string `envconfig:"DOGEBRIDGE_KMS_KEY_NAME" default:"local-dev-key"`
	LocalKMSHex string `envconfig:"DOGEBRIDGE_LOCAL_KMS_SEED_HEX"`

	MinConfirmations uint32 `envconfig:"DOGEBRIDGE_MIN_CONFIRMATIONS" default:"6"`
	FeeRateSatPerKvB int64  `envconfig:"DOGEBRIDGE_FEE_RATE" default:"1000"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// Load .env file if it exists. godotenv does NOT override already-set env vars,
	// so real environment variables take precedence over .env values.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Network != "mainnet" && c.Network != "testnet" {
		return fmt.Errorf("%w: network must be \"mainnet\" or \"testnet\", got %q", ErrInvalidConfig, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	return nil
}
