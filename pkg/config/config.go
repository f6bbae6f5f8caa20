// Copyright 2025 Astria Sequencer Contributors

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the sequencer node.
type Config struct {
	// Chain identity
	ChainID         string // CometBFT chain ID, also the chain_id field validated on every transaction
	AddressPrefix   string // bech32m prefix for base addresses (§4.2)
	IBCAddressPrefix string // bech32m prefix for IBC-compatible addresses

	// ChainSecretHex is the hex-encoded HMAC-PRF key deterministic order
	// IDs are derived from (§4.5); never generated from OS randomness.
	ChainSecretHex string

	DefaultFeeAsset string // asset denom CheckTx charges affordability against

	// Server addresses
	CometBFTHome string // CometBFT home directory (config.toml, node keys, data)
	ListenAddr   string // CometBFT ABCI socket address
	GRPCAddr     string // SequencerService gRPC listen address
	MetricsAddr  string // Prometheus /metrics listen address
	HealthAddr   string // /health listen address

	// Mempool / proposal budgets
	MempoolCapacity  int
	MaxProposalBytes int64
	MaxProposalGas   int64

	// Upgrade schedule (C12)
	UpgradeSchedulePath string

	// Archive (optional, pkg/archive)
	DatabaseURL         string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int
	DatabaseConnMaxLifetime time.Duration

	LogLevel string
}

// Load reads configuration from environment variables, following the
// getEnv/getEnvInt/getEnvBool helper convention used throughout this
// codebase's operational config.
func Load() (*Config, error) {
	cfg := &Config{
		ChainID:          getEnv("CHAIN_ID", "astria-sequencer-devnet"),
		AddressPrefix:    getEnv("ADDRESS_PREFIX", "astria"),
		IBCAddressPrefix: getEnv("IBC_ADDRESS_PREFIX", "astriacompat"),

		ChainSecretHex: getEnv("CHAIN_SECRET", ""),

		DefaultFeeAsset: getEnv("DEFAULT_FEE_ASSET", "nria"),

		CometBFTHome: getEnv("COMETBFT_HOME", "./data/cometbft"),
		ListenAddr:   getEnv("ABCI_LISTEN_ADDR", "tcp://127.0.0.1:26658"),
		GRPCAddr:     getEnv("GRPC_ADDR", "0.0.0.0:8080"),
		MetricsAddr:  getEnv("METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:   getEnv("HEALTH_ADDR", "0.0.0.0:8081"),

		MempoolCapacity:  getEnvInt("MEMPOOL_CAPACITY", 10000),
		MaxProposalBytes: getEnvInt64("MAX_PROPOSAL_BYTES", 4*1024*1024),
		MaxProposalGas:   getEnvInt64("MAX_PROPOSAL_GAS", 4*1024*1024),

		UpgradeSchedulePath: getEnv("UPGRADE_SCHEDULE_PATH", ""),

		DatabaseURL:             getEnv("DATABASE_URL", ""),
		DatabaseMaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
		DatabaseConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// ChainSecret decodes ChainSecretHex, failing loudly rather than
// defaulting to a zero key: a predictable HMAC-PRF key lets an attacker
// precompute order IDs (§4.5).
func (c *Config) ChainSecret() ([]byte, error) {
	if c.ChainSecretHex == "" {
		return nil, fmt.Errorf("config: CHAIN_SECRET is required but not set")
	}
	b, err := hex.DecodeString(c.ChainSecretHex)
	if err != nil {
		return nil, fmt.Errorf("config: CHAIN_SECRET is not valid hex: %w", err)
	}
	if len(b) < 32 {
		return nil, fmt.Errorf("config: CHAIN_SECRET must be at least 32 bytes (64 hex chars), got %d", len(b))
	}
	return b, nil
}

// Validate checks that all required configuration is present, for
// production startup.
func (c *Config) Validate() error {
	var errs []string

	if c.ChainID == "" {
		errs = append(errs, "CHAIN_ID is required but not set")
	}
	if c.AddressPrefix == "" {
		errs = append(errs, "ADDRESS_PREFIX is required but not set")
	}
	if _, err := c.ChainSecret(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.DefaultFeeAsset == "" {
		errs = append(errs, "DEFAULT_FEE_ASSET is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local
// development, where CHAIN_SECRET may be a throwaway value.
func (c *Config) ValidateForDevelopment() error {
	if c.ChainID == "" {
		return fmt.Errorf("development configuration validation failed:\n  - CHAIN_ID is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
