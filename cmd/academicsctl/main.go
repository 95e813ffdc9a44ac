package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-academics/internal/app"
	"github.com/noah-isme/sis-academics/pkg/cache"
	"github.com/noah-isme/sis-academics/pkg/config"
	"github.com/noah-isme/sis-academics/pkg/database"
	"github.com/noah-isme/sis-academics/pkg/logger"
)

func main() {
	if err := newRootCmd(openServices).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openServices connects to the tenant named by --schema (or DB_SCHEMA) and wires the services.
func openServices(cmd *cobra.Command) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
		cfg.Database.Schema = schema
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	container := app.NewContainer(cfg, db, redisClient, logr)
	container.Audit.Start(context.Background())

	return &services{
		calendar:   container.Calendar,
		promotions: container.Promotions,
		rosters:    container.Rosters,
		migrate: func(ctx context.Context) (int, error) {
			migrator, err := database.NewMigrator(db, cfg.Database.Schema, logr)
			if err != nil {
				return 0, err
			}
			return migrator.Migrate(ctx)
		},
		close: func() {
			container.Audit.Stop()
			if redisClient != nil {
				_ = redisClient.Close()
			}
			_ = db.Close()
			_ = logr.Sync()
		},
	}, nil
}
