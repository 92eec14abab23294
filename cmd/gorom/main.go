package main

import (
	"fmt"
	"os"

	"github.com/datallboy/gorom/internal/app"
	"github.com/datallboy/gorom/internal/infra/config"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/notify"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "gorom",
		Short:        "Download games and firmware from a RomM server",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newDownloadCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func loadConfig(opts *rootOptions) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open log file %s: %w", cfg.Log.Path, err)
	}
	return cfg, log, nil
}

// setup loads the config and wires the application around host.
func setup(opts *rootOptions, host notify.Notifier) (*app.Context, func(), error) {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	return app.Bootstrap(cfg, log, host)
}
