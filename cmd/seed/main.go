package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"nko-map-backend/shared/config"
	"nko-map-backend/shared/database"
	"nko-map-backend/shared/repository"
)

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if cfg.EnvFile != "" {
		logger.Info("environment loaded", zap.String("path", cfg.EnvFile))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	created, err := database.SeedAdmin(ctx, repository.NewPostgresUserRepository(db), cfg.SuperAdminEmail, cfg.SuperAdminPassword, logger)
	if err != nil {
		logger.Fatal("admin seed failed", zap.Error(err))
	}

	logger.Info("seed completed", zap.Bool("admin_created", created))
}
