package cli

import (
	"context"
	"time"

	mongoMigration "tourbook/internal/migrations/mongo"
	"tourbook/pkg/config"

	"github.com/spf13/cobra"
)

const migrateTimeout = 120 * time.Second

func NewMigrateCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, schema validators and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			cfg := config.Load(ServiceName + "-migrate")
			cfg.SetMongo()
			defer cfg.GracefulShutdown()

			cfg.Log.Info("Starting Mongo migration job", "database", cfg.MongoDatabaseName)
			if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName)); err != nil {
				cfg.Log.Error("Migration failed", "error", err)
				return err
			}
			cfg.Log.Info("Migration completed successfully")
			return nil
		},
	}
}
