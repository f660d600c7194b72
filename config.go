package patchkit

import (
	"context"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/store/registry"
	"github.com/autom8ter/patchkit/util"
)

// StoreConfig names the collection store driver and its connection params
type StoreConfig struct {
	Driver string         `toml:"driver"`
	Params map[string]any `toml:"params"`
}

// Config is the optional patchkit config file
type Config struct {
	// LogLevel is one of debug, info, warn or error
	LogLevel string      `toml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	Color    ColorMode   `toml:"color" validate:"omitempty,oneof=auto always never"`
	Store    StoreConfig `toml:"store"`
}

// DefaultConfig returns the config used when no file exists
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "warn",
		Color:    ColorAuto,
		Store: StoreConfig{
			Params: map[string]any{},
		},
	}
}

// DefaultConfigPath returns $HOME/.config/patchkit/config.toml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, errors.Setup, "could not determine home directory")
	}
	return filepath.Join(home, ".config", "patchkit", "config.toml"), nil
}

// LoadConfig reads the config file at path over the defaults. An empty path reads the
// default location, where a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, errors.Wrap(err, errors.Setup, "failed to read config %s", path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(err, errors.Setup, "failed to decode config %s", path)
	}
	if cfg.Store.Params == nil {
		cfg.Store.Params = map[string]any{}
	}
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, errors.Wrap(err, errors.Setup, "invalid config %s", path)
	}
	return cfg, nil
}

// StoreOpener opens the configured driver through the store registry
func (c *Config) StoreOpener() StoreOpener {
	return func(ctx context.Context) (store.Store, error) {
		if c.Store.Driver == "" {
			return nil, errors.New(errors.Setup, "no store driver configured (have %v)", registry.Drivers())
		}
		return registry.Open(ctx, c.Store.Driver, c.Store.Params)
	}
}
