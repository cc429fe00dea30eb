// Package cli implements the entitycache command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/micro-ha/entitycache/internal/config"
	"github.com/micro-ha/entitycache/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "entitycache",
		Short: "Entity cache for a home-automation server",
		Long: "Keeps a local cache of things, items, rules and related entities coherent " +
			"with the server's event stream and serves it over HTTP.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file (default $CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTailCommand(opts))

	return cmd
}

// loadConfig applies the global flags on top of config.Load.
func (o *RootOptions) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.ConfigFile != "" {
		cfg, err = config.LoadFile(o.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = logging.ParseLevel(o.LogLevel)
	}
	return cfg, nil
}
