// Package config provides configuration management for the trust ledger.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Cache    CacheConfig
	RateLimit RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// LedgerConfig holds the ledger protocol constants
type LedgerConfig struct {
	// MinDeposit is the floor for liquidity pool deposits
	MinDeposit int64
	// MinRelayerStake is the stake required to authorize a relayer
	MinRelayerStake int64
	// QuorumThreshold is the minimum count of distinct authorized relayer signatures
	QuorumThreshold int
	// FreshnessWindow bounds how old an attestation or proof timestamp may be
	FreshnessWindow time.Duration
	// AccountAgeBonus is the duration after which the flat age bonus applies
	AccountAgeBonus time.Duration
	// Owner holds the admin capability for strategies, chains and relayers
	Owner string
	// PoolCustody is the settlement account holding pool deposits
	PoolCustody string
	// BridgeCustody is the settlement account holding in-flight transfers
	BridgeCustody string
	// LendingModule is the only caller allowed to fund loans
	LendingModule string
	// DataProvider signs off-chain credit verifications
	DataProvider string
	// BoostProofSalt keys the reputation proof commitment scheme
	BoostProofSalt string
}

// CacheConfig holds score cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	FreeTier int
	PaidTier int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "trust_ledger"),
				User:           getEnv("POSTGRES_USER", "ledger"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 100),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "trust_ledger"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Ledger: LedgerConfig{
			MinDeposit:      getEnvAsInt64("LEDGER_MIN_DEPOSIT", 10),
			MinRelayerStake: getEnvAsInt64("LEDGER_MIN_RELAYER_STAKE", 1000),
			QuorumThreshold: getEnvAsInt("LEDGER_QUORUM_THRESHOLD", 2),
			FreshnessWindow: getEnvAsDuration("LEDGER_FRESHNESS_WINDOW", time.Hour),
			AccountAgeBonus: getEnvAsDuration("LEDGER_ACCOUNT_AGE_BONUS", 30*24*time.Hour),
			Owner:           getEnv("LEDGER_OWNER_ADDRESS", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
			PoolCustody:     getEnv("LEDGER_POOL_CUSTODY_ADDRESS", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
			BridgeCustody:   getEnv("LEDGER_BRIDGE_CUSTODY_ADDRESS", "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"),
			LendingModule:   getEnv("LEDGER_LENDING_MODULE_ADDRESS", "0x90F79bf6EB2c4f870365E785982E1f101E93b906"),
			DataProvider:    getEnv("LEDGER_DATA_PROVIDER_ADDRESS", "0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"),
			BoostProofSalt:  getEnv("LEDGER_BOOST_PROOF_SALT", "trust-ledger-dev"),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 20*time.Second),
		},
		RateLimit: RateLimitConfig{
			FreeTier: getEnvAsInt("RATE_LIMIT_FREE_TIER", 1000),
			PaidTier: getEnvAsInt("RATE_LIMIT_PAID_TIER", 10000),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate rejects configurations that would break ledger invariants
func (c *Config) validate() error {
	if c.Ledger.MinDeposit <= 0 {
		return fmt.Errorf("LEDGER_MIN_DEPOSIT must be positive, got %d", c.Ledger.MinDeposit)
	}
	if c.Ledger.MinRelayerStake <= 0 {
		return fmt.Errorf("LEDGER_MIN_RELAYER_STAKE must be positive, got %d", c.Ledger.MinRelayerStake)
	}
	if c.Ledger.QuorumThreshold < 2 {
		return fmt.Errorf("LEDGER_QUORUM_THRESHOLD must be at least 2, got %d", c.Ledger.QuorumThreshold)
	}
	if c.Ledger.FreshnessWindow <= 0 {
		return fmt.Errorf("LEDGER_FRESHNESS_WINDOW must be positive, got %v", c.Ledger.FreshnessWindow)
	}
	for name, addr := range map[string]string{
		"LEDGER_OWNER_ADDRESS":          c.Ledger.Owner,
		"LEDGER_POOL_CUSTODY_ADDRESS":   c.Ledger.PoolCustody,
		"LEDGER_BRIDGE_CUSTODY_ADDRESS": c.Ledger.BridgeCustody,
		"LEDGER_LENDING_MODULE_ADDRESS": c.Ledger.LendingModule,
		"LEDGER_DATA_PROVIDER_ADDRESS":  c.Ledger.DataProvider,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %q", name, addr)
		}
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 gets an environment variable as an int64 with a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
