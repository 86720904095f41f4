package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envMap(map[string]string{"DATABASE_URL": "postgres://localhost/library"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.True(t, decimal.RequireFromString("0.15").Equal(cfg.Fees.LateFeeRate))
	assert.Equal(t, int32(2), cfg.Fees.Scale)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"ADDR":             "127.0.0.1:9000",
		"DATABASE_DRIVER":  "memory",
		"LATE_FEE_RATE":    "0.2",
		"FEE_SCALE":        "3",
		"LOG_LEVEL":        "debug",
		"SHUTDOWN_TIMEOUT": "2s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.DatabaseDriver)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, decimal.RequireFromString("0.2").Equal(cfg.Fees.LateFeeRate))
	assert.Equal(t, int32(3), cfg.Fees.Scale)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing url", map[string]string{}, "DATABASE_URL is required"},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "oracle", "DATABASE_URL": "x"}, "DATABASE_DRIVER"},
		{"bad rate", map[string]string{"DATABASE_DRIVER": "memory", "LATE_FEE_RATE": "lots"}, "LATE_FEE_RATE"},
		{"negative rate", map[string]string{"DATABASE_DRIVER": "memory", "LATE_FEE_RATE": "-0.1"}, "LATE_FEE_RATE"},
		{"bad scale", map[string]string{"DATABASE_DRIVER": "memory", "FEE_SCALE": "two"}, "FEE_SCALE"},
		{"negative scale", map[string]string{"DATABASE_DRIVER": "memory", "FEE_SCALE": "-1"}, "FEE_SCALE"},
		{"bad level", map[string]string{"DATABASE_DRIVER": "memory", "LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad timeout", map[string]string{"DATABASE_DRIVER": "memory", "SHUTDOWN_TIMEOUT": "soon"}, "SHUTDOWN_TIMEOUT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(envMap(tc.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
