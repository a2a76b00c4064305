package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"volumeapi/internal/database"
	"volumeapi/internal/database/migration"
	"volumeapi/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL schema",
	Long: `Create the tables used by the PostgreSQL document store and full-text index.
Safe to run repeatedly: an existing schema is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logger.New(logger.FromDebug(cfg.Debug, cfg.Location()))

		db, err := database.NewPostgres(cmd.Context(), cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		return migration.EnsureMigrated(cmd.Context(), db, log, cfg.Database.Host)
	},
}
