package config

import "path/filepath"

// Defaults returns a Config populated with every default from SPEC_FULL.md
// §6's configuration surface table.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:           filepath.Join(DefaultConfigDir(), "hoard.db"),
			BusyTimeoutMS:  5000,
			LockTimeoutMS:  30000,
			RetryBudgetMS:  30000,
			RetryBackoffMS: 50,
			ReaderPoolSize: 8,
		},
		Duplicates: DuplicatesConfig{
			Threshold: 0.85,
		},
		Memory: MemoryConfig{
			DefaultTTLDays: 30,
		},
		Worker: WorkerConfig{
			LeaseTTLMS:  15000,
			Concurrency: 4,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8420",
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// applyZeroValueDefaults fills in any field viper's Unmarshal left at its
// Go zero value (meaning: neither the config file nor the environment set
// it). Mirrors dittofs's ApplyDefaults pass, which runs after Unmarshal
// rather than relying on viper.SetDefault so that an explicit `0` in a
// config file is indistinguishable from "unset" the same way it is for any
// other mapstructure-bound integer field.
func applyZeroValueDefaults(cfg *Config) {
	d := Defaults()

	if cfg.Database.Path == "" {
		cfg.Database.Path = d.Database.Path
	}
	if cfg.Database.BusyTimeoutMS == 0 {
		cfg.Database.BusyTimeoutMS = d.Database.BusyTimeoutMS
	}
	if cfg.Database.LockTimeoutMS == 0 {
		cfg.Database.LockTimeoutMS = d.Database.LockTimeoutMS
	}
	if cfg.Database.RetryBudgetMS == 0 {
		cfg.Database.RetryBudgetMS = d.Database.RetryBudgetMS
	}
	if cfg.Database.RetryBackoffMS == 0 {
		cfg.Database.RetryBackoffMS = d.Database.RetryBackoffMS
	}
	if cfg.Database.ReaderPoolSize == 0 {
		cfg.Database.ReaderPoolSize = d.Database.ReaderPoolSize
	}
	if cfg.Duplicates.Threshold == 0 {
		cfg.Duplicates.Threshold = d.Duplicates.Threshold
	}
	if cfg.Memory.DefaultTTLDays == 0 {
		cfg.Memory.DefaultTTLDays = d.Memory.DefaultTTLDays
	}
	if cfg.Worker.LeaseTTLMS == 0 {
		cfg.Worker.LeaseTTLMS = d.Worker.LeaseTTLMS
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = d.Worker.Concurrency
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = d.Server.ListenAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
}
