package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/config"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "schedulerd",
	Short:         "Vehicle timeline scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml" // Default path for local development
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "configuration file")
}

// setup loads the configuration and builds the root logger.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load configuration from %s: %w", cfgPath, err)
	}
	log, err := logger.New(cfg.Log, os.Stdout)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log.Info().Str("path", cfgPath).Msg("configuration loaded")
	return cfg, log, nil
}
