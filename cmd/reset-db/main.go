package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"nko-map-backend/shared/config"
	"nko-map-backend/shared/database"
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

	if cfg.IsProduction() {
		logger.Fatal("refusing to reset the database with APP_ENV=production")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Reset(db, logger); err != nil {
		logger.Fatal("reset failed", zap.Error(err))
	}

	logger.Info("database reset completed, run the seed command to recreate tables")
}
