package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nko-map-backend/shared/config"
	"nko-map-backend/shared/database/models"
)

// getLogLevel returns appropriate log level based on environment
func getLogLevel(cfg *config.Config) logger.LogLevel {
	if cfg.IsDevelopment() {
		return logger.Warn
	}
	return logger.Error
}

// Connect opens the postgres connection, tunes the pool and pings the server.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(getLogLevel(cfg)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established")
	return db, nil
}

// Models lists every table owned by the application, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.NPO{},
		&models.AuditLog{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	migrator := db.Migrator()
	created := 0

	for _, model := range Models() {
		if !migrator.HasTable(model) {
			log.Info("creating table", zap.String("model", fmt.Sprintf("%T", model)))
			created++
		}
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	log.Info("database schema is up to date", zap.Int("tables_created", created))
	return nil
}

// Reset drops every application table, dependents first.
func Reset(db *gorm.DB, log *zap.Logger) error {
	tables := Models()
	for i := len(tables) - 1; i >= 0; i-- {
		model := tables[i]
		log.Info("dropping table", zap.String("model", fmt.Sprintf("%T", model)))
		if err := db.Migrator().DropTable(model); err != nil {
			return fmt.Errorf("failed to drop %T: %w", model, err)
		}
	}
	return nil
}

// Ping reports whether the database answers within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
