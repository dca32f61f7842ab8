package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/marketplace/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the postgres schema",
	Run: func(_ *cobra.Command, _ []string) {
		migrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate() {
	ctx := context.Background()
	logger := newLogger()
	defer logger.Sync()

	dsn := viper.GetString("store.postgres.dsn")
	if strings.TrimSpace(dsn) == "" {
		logger.Fatal("store.postgres.dsn is not configured", zap.String("hint", "set DATABASE_URL environment variable"))
	}

	store, err := postgres.Connect(ctx, postgres.Options{DSN: dsn})
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("migrating", zap.Error(err))
	}

	logger.Info("schema is up to date")
}
