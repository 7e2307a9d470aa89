package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/database"
	"github.com/deppfellow/layered-api/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.NeedsDatabase() {
				return errors.New("migrate requires storage.persistence=postgres")
			}

			log := logger.NewLoggerWithService(cfg.Observability, nil)
			return database.Migrate(cmd.Context(), &log, cfg)
		},
	}
}
