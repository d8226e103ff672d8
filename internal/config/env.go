// Package config reads rcx settings from the environment.
//
// Every setting has a command-line flag in internal/cli; the environment only
// supplies the flag's default, so an explicit flag always wins.
package config

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-provided defaults.
type Config struct {
	// MaxIterations caps engine passes. Non-positive selects the engine default.
	MaxIterations int `env:"RCX_MAX_ITERATIONS" envDefault:"1000"`

	// FingerprintWindow is the arena prefix hashed after every pass.
	FingerprintWindow int `env:"RCX_FINGERPRINT_WINDOW" envDefault:"1024"`

	// DB is the SQLite run history path. Empty disables recording.
	DB string `env:"RCX_DB"`

	// LogFile receives JSON logs in addition to stderr when set.
	LogFile string `env:"RCX_LOG_FILE"`

	// Jobs bounds parallel engines in batch mode. 0 means GOMAXPROCS.
	Jobs int `env:"RCX_JOBS" envDefault:"0"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the RCX_* variables and checks their ranges.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.FingerprintWindow < 0 {
		return Config{}, fmt.Errorf("RCX_FINGERPRINT_WINDOW: must be >= 0, got %d", cfg.FingerprintWindow)
	}
	if cfg.Jobs < 0 {
		return Config{}, fmt.Errorf("RCX_JOBS: must be >= 0, got %d", cfg.Jobs)
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}
	return cfg, nil
}
