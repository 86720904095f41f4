// Package config loads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"

	"library/internal/domain"
)

// DriverMemory selects the in-memory store.
const DriverMemory = "memory"

var drivers = map[string]bool{
	"postgres":   true,
	"pgx":        true,
	"sqlite":     true,
	DriverMemory: true,
}

// Config holds the runtime settings of the library service.
type Config struct {
	Addr            string
	DatabaseDriver  string
	DatabaseURL     string
	Fees            domain.FeePolicy
	LogLevel        zapcore.Level
	ShutdownTimeout time.Duration
}

// Load reads the configuration from environment variables, applying
// defaults for unset ones.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Addr:           env("ADDR", ":8080"),
		DatabaseDriver: env("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    getenv("DATABASE_URL"),
	}

	if !drivers[cfg.DatabaseDriver] {
		return Config{}, errors.Errorf("DATABASE_DRIVER %q: want postgres, pgx, sqlite or memory", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseDriver != DriverMemory {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	rate, err := decimal.NewFromString(env("LATE_FEE_RATE", domain.DefaultLateFeeRate.String()))
	if err != nil {
		return Config{}, errors.Wrap(err, "LATE_FEE_RATE")
	}
	if rate.IsNegative() {
		return Config{}, errors.Errorf("LATE_FEE_RATE must not be negative, got %s", rate)
	}
	scale, err := strconv.ParseInt(env("FEE_SCALE", strconv.Itoa(int(domain.DefaultFeeScale))), 10, 32)
	if err != nil {
		return Config{}, errors.Wrap(err, "FEE_SCALE")
	}
	if scale < 0 {
		return Config{}, errors.Errorf("FEE_SCALE must not be negative, got %d", scale)
	}
	cfg.Fees = domain.FeePolicy{LateFeeRate: rate, Scale: int32(scale)}

	if cfg.LogLevel, err = zapcore.ParseLevel(env("LOG_LEVEL", "info")); err != nil {
		return Config{}, errors.Wrap(err, "LOG_LEVEL")
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(env("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return Config{}, errors.Wrap(err, "SHUTDOWN_TIMEOUT")
	}
	return cfg, nil
}
