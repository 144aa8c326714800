// Package cli implements the daytrail command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/config"
)

// Version is set at build time
var Version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "daytrail",
		Short:         "Turns location and health events into a categorized daily timeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Development logging at debug level")

	root.AddCommand(serveCmd(opts))
	root.AddCommand(runCmd(opts))
	root.AddCommand(purgeCmd(opts))
	root.AddCommand(tokenCmd(opts))

	return root
}

// load reads the configuration and builds the logger for it
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel, o.debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}
