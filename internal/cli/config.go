package cli

import "github.com/thrr87/hoard/internal/config"

// loadConfig loads configuration per opts, applying the --db override on
// top of whatever internal/config.Load resolved from file/env/defaults.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	return cfg, nil
}
