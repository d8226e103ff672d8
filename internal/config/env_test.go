package config

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"RCX_MAX_ITERATIONS", "RCX_FINGERPRINT_WINDOW", "RCX_DB", "RCX_LOG_FILE", "RCX_JOBS"} {
		// Setenv restores the original value on cleanup.
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.MaxIterations)
	assert.Equal(t, 1024, cfg.FingerprintWindow)
	assert.Empty(t, cfg.DB)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Jobs)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RCX_MAX_ITERATIONS", "5")
	t.Setenv("RCX_FINGERPRINT_WINDOW", "64")
	t.Setenv("RCX_DB", "/tmp/rcx.db")
	t.Setenv("RCX_LOG_FILE", "/tmp/rcx.log")
	t.Setenv("RCX_JOBS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Config{
		MaxIterations:     5,
		FingerprintWindow: 64,
		DB:                "/tmp/rcx.db",
		LogFile:           "/tmp/rcx.log",
		Jobs:              3,
	}, cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"not an int", "RCX_MAX_ITERATIONS", "many", "parse env:"},
		{"negative window", "RCX_FINGERPRINT_WINDOW", "-1", "RCX_FINGERPRINT_WINDOW"},
		{"negative jobs", "RCX_JOBS", "-2", "RCX_JOBS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
