package config

import (
	"fmt"
	"os"
	"strconv"
)

// EnvConfig is the process-wide, environment-variable driven configuration
// the CLI loads once at startup and passes explicitly into the core. The
// core packages never call os.Getenv themselves.
type EnvConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	RedisHost string
	RedisPort string

	VendorAPIKey string

	LogLevel string
	LogFile  string
}

// getEnv returns the value of key, or def if unset or empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// mustEnv fetches the value of key, returning an error rather than
// terminating the process (the teacher's mustEnv calls log.Fatalf; this
// module's core must never exit the process out from under a caller, so the
// failure is returned as a plain error instead).
func mustEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: required environment variable %s is unset", key)
	}
	return v, nil
}

// LoadEnv reads the environment-variable surface from §6 into an EnvConfig.
// DB_PASSWORD and VENDOR_API_KEY are required; everything else defaults.
func LoadEnv() (EnvConfig, error) {
	dbPassword, err := mustEnv("DB_PASSWORD")
	if err != nil {
		return EnvConfig{}, err
	}
	vendorKey, err := mustEnv("VENDOR_API_KEY")
	if err != nil {
		return EnvConfig{}, err
	}

	return EnvConfig{
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBName:       getEnv("DB_NAME", "histdata"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   dbPassword,
		RedisHost:    getEnv("REDIS_HOST", "localhost"),
		RedisPort:    getEnv("REDIS_PORT", "6379"),
		VendorAPIKey: vendorKey,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
	}, nil
}

// BatchSizeFromEnv parses an optional override for the default batch size,
// matching the teacher's "env var with fallback, ignore parse errors"
// convention in ohlcv_config.go's copyBatchSize.
func BatchSizeFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
