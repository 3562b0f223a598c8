package main

import (
	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "tariffwatch",
		Short: "tariffwatch watches supplier tariff grids and extracts their prices",
		Long: `tariffwatch retrieves the published tariff grids of electricity and gas
suppliers, detects which documents changed since the last run and turns the
changed ones into normalized tariff records.

Usage:
  tariffwatch run [--providers a,b]
  tariffwatch extract <file> --provider p
  tariffwatch state`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the YAML/JSON configuration file (default: search TARIFFWATCH_CONFIG_PATH and the working directory)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newRunCmd(flags), newExtractCmd(flags), newStateCmd(flags))
	return cmd
}

// loadConfig loads and validates the configuration with a bootstrap logger,
// then builds the configured logger. A non-empty runID places the log file
// under the run directory.
func loadConfig(flags *rootFlags, runID string) (*config.GlobalConfig, zerolog.Logger, error) {
	bootstrap, err := logger.New(config.NewDefaultLogConfig())
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	cfg, err := config.LoadGlobalConfig(flags.configPath, bootstrap)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if flags.logLevel != "" {
		cfg.LogConfig.LogLevel = flags.logLevel
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, zerolog.Nop(), err
	}

	var zLogger zerolog.Logger
	if runID != "" {
		zLogger, err = logger.NewWithRunID(cfg.LogConfig, runID)
	} else {
		zLogger, err = logger.New(cfg.LogConfig)
	}
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, zLogger, nil
}
