package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/billing-engine/internal/container"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.ToContainerConfig()
			db, err := container.ProvideDatabase(&cfg.Database, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("Database is up to date", zap.String("path", cfg.Database.Path))
			return db.DB.Close()
		},
	}
}
