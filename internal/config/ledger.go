package config

import (
	"os"
	"strconv"
	"time"
)

// LedgerConfig tunes the ledger engine and account provisioning.
type LedgerConfig struct {
	WithdrawalCodeTTL time.Duration // how long a withdrawal code stays resolvable
	SeedBalance       int64         // opening balance for newly registered accounts
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		WithdrawalCodeTTL: getEnvAsDuration("WITHDRAWAL_CODE_TTL", 15*time.Minute),
		SeedBalance:       getEnvAsInt64("ACCOUNT_SEED_BALANCE", 0),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
