package main

import (
	"github.com/spf13/cobra"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/db"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/seed"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		gormDB, err := db.Init(&cfg.Database, log)
		if err != nil {
			return err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}
		log.Info().Msg("schema is up to date")
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load vehicles and events from a YAML fixtures file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		fixtures, err := seed.LoadFile(seedFile)
		if err != nil {
			return err
		}
		gormDB, err := db.Init(&cfg.Database, log)
		if err != nil {
			return err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := fixtures.Apply(cmd.Context(), store.NewGormStore(gormDB, log)); err != nil {
			return err
		}
		log.Info().
			Int("vehicles", len(fixtures.Vehicles)).
			Int("events", len(fixtures.Events)).
			Msg("fixtures loaded")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "fixtures.yaml", "fixtures file")
	rootCmd.AddCommand(migrateCmd, seedCmd)
}
