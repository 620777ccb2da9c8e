// Package config loads hoard's layered configuration: CLI flags, then
// HOARD_*-prefixed environment variables, then a hoard.yaml file, then
// built-in defaults, in that order of precedence. Grounded on dittofs's
// pkg/config.Load (viper + mapstructure, defaults applied post-unmarshal,
// then validated).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DatabaseConfig is the Connection Factory / lock primitive surface from
// SPEC_FULL.md §6.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path" yaml:"path" validate:"required"`
	BusyTimeoutMS   int           `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms" validate:"gte=0"`
	LockTimeoutMS   int           `mapstructure:"lock_timeout_ms" yaml:"lock_timeout_ms" validate:"gte=0"`
	RetryBudgetMS   int           `mapstructure:"retry_budget_ms" yaml:"retry_budget_ms" validate:"gte=0"`
	RetryBackoffMS  int           `mapstructure:"retry_backoff_ms" yaml:"retry_backoff_ms" validate:"gte=0"`
	ReaderPoolSize int `mapstructure:"reader_pool_size" yaml:"reader_pool_size" validate:"gte=1"`
}

// DuplicatesConfig configures the duplicate detector (§4.8).
type DuplicatesConfig struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold" validate:"gte=0,lte=1"`
}

// MemoryConfig configures memory lifecycle defaults (§3).
type MemoryConfig struct {
	DefaultTTLDays int `mapstructure:"default_ttl_days" yaml:"default_ttl_days" validate:"gte=0"`
}

// WorkerConfig configures the Background Worker Lease & Job Queue (§4.7).
type WorkerConfig struct {
	LeaseTTLMS  int `mapstructure:"lease_ttl_ms" yaml:"lease_ttl_ms" validate:"gt=0"`
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1"`
}

// ServerConfig configures the JSON-RPC HTTP transport (§6).
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`
}

// LoggingConfig configures internal/log.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Config is the full configuration surface the core and its ambient stack
// recognize. Any key outside this struct belongs to an external
// collaborator (ingestion, auth, transport internals) per §1.
type Config struct {
	Database   DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Duplicates DuplicatesConfig  `mapstructure:"duplicates" yaml:"duplicates"`
	Memory     MemoryConfig      `mapstructure:"memory" yaml:"memory"`
	Worker     WorkerConfig      `mapstructure:"worker" yaml:"worker"`
	Server     ServerConfig      `mapstructure:"server" yaml:"server"`
	Logging    LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// Load reads configuration from configPath (if non-empty), layers in
// HOARD_*-prefixed environment variables, fills in defaults for anything
// left unset, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if found {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	} else {
		// No file: still let bare environment variables override defaults.
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	applyZeroValueDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("HOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only looks up keys viper already knows, so each key is bound
	// to its HOARD_* variable explicitly; AutomaticEnv alone would leave env
	// overrides unseen whenever the key is absent from the config file.
	for _, key := range []string{
		"database.path", "database.busy_timeout_ms", "database.lock_timeout_ms",
		"database.retry_budget_ms", "database.retry_backoff_ms", "database.reader_pool_size",
		"duplicates.threshold", "memory.default_ttl_days",
		"worker.lease_ttl_ms", "worker.concurrency",
		"server.listen_addr", "logging.level", "logging.json",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(DefaultConfigDir())
	v.SetConfigName("hoard")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

// DefaultConfigDir returns ~/.hoard, the default home for both the config
// file and the SQLite store.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hoard"
	}
	return filepath.Join(home, ".hoard")
}

// Validate runs struct-tag validation over cfg using go-playground/validator,
// the same library dittofs uses for its own Config.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}
