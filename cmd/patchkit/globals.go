package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/autom8ter/patchkit"
	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/util"
	"github.com/spf13/cobra"
)

// globals are the flags shared by every command
type globals struct {
	configPath string
	logLevel   string
	color      string
	driver     string
	params     []string
	dryRun     bool
}

func (g *globals) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "path to config file (default $HOME/.config/patchkit/config.toml)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&g.color, "color", "", "colored output: auto, always or never")
	flags.StringVar(&g.driver, "driver", "", "collection store driver: badger, firestore, postgres or sqlite")
	flags.StringArrayVar(&g.params, "param", nil, "store driver param as key=value (repeatable)")
	flags.BoolVar(&g.dryRun, "dry-run", false, "compute patches without writing anything")
}

// config loads the config file and applies the flags over it
func (g *globals) config() (*patchkit.Config, error) {
	cfg, err := patchkit.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.color != "" {
		cfg.Color = patchkit.ColorMode(g.color)
	}
	if g.driver != "" {
		cfg.Store.Driver = g.driver
	}
	params, err := pairs("--param", g.params)
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		cfg.Store.Params[k] = v
	}
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid flags")
	}
	return cfg, nil
}

// runner builds a Runner from the config. The returned func flushes the logger.
func (g *globals) runner(cfg *patchkit.Config) (*patchkit.Runner, func(), error) {
	logger, err := patchkit.NewLogger(cfg.LogLevel, map[string]any{"app": "patchkit"})
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.Setup, "failed to create logger")
	}
	runner := patchkit.NewRunner(
		patchkit.WithLogger(logger),
		patchkit.WithPrinter(patchkit.NewPrinter(os.Stdout, cfg.Color)),
		patchkit.WithDryRun(g.dryRun),
	)
	return runner, func() { logger.Sync(context.Background()) }, nil
}

// pairs parses key=value flag values
func pairs(flag string, values []string) (map[string]string, error) {
	out := map[string]string{}
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, errors.New(errors.Validation, "%s expects key=value, got %q", flag, v)
		}
		out[key] = value
	}
	return out, nil
}

// typed decodes a flag value as json when asked to and when it is valid json
func typed(value string, asJSON bool) any {
	if !asJSON {
		return value
	}
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return value
	}
	return v
}
