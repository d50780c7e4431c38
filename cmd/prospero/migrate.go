package main

import (
	"github.com/spf13/cobra"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/store"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	var migDir string
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			return store.Migrate(migDir, cfg.Storage.Postgres.DSN())
		},
	}
	migrateCmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source")
	return migrateCmd
}
