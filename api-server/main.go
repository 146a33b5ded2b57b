package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "nko-map-backend/docs"

	"nko-map-backend/api-server/handlers"
	"nko-map-backend/api-server/middleware"
	"nko-map-backend/api-server/routes"
	"nko-map-backend/api-server/server"
	"nko-map-backend/shared/config"
	"nko-map-backend/shared/database"
	"nko-map-backend/shared/notify"
	"nko-map-backend/shared/repository"
	"nko-map-backend/shared/services"
	"nko-map-backend/shared/storage"
	"nko-map-backend/shared/telemetry"
	utils "nko-map-backend/shared/utils/auth"
	"nko-map-backend/shared/utils/cache"
	"nko-map-backend/shared/utils/mail"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newDatabase,
			newUserRepository,
			newNPORepository,
			newAuditRepository,
			newCacheManager,
			newListingCache,
			newLogoStore,
			newLogoStorage,
			newMailer,
			newTokenService,
			newPolicy,
			newHub,
			newDispatcher,
			newAccounts,
			newLifecycle,
			newDirectory,
			services.NewStats,
			middleware.NewGuard,
			newRateLimiter,
			newThrottle,
			newAuditTrail,
			handlers.NewAuthHandler,
			handlers.NewNPOHandler,
			handlers.NewAdminHandler,
			handlers.NewProfileHandler,
			handlers.NewUploadHandler,
			handlers.NewWebSocketHandler,
			newHealthHandler,
			routes.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, seedAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("service", cfg.ServiceName))
	zap.ReplaceGlobals(logger)
	logEnvSource(cfg, logger)
	return logger, nil
}

func logEnvSource(cfg *config.Config, logger *zap.Logger) {
	if cfg.EnvFile == "" {
		logger.Warn(".env file not found, using process environment")
		return
	}
	logger.Info("environment loaded", zap.String("path", cfg.EnvFile))
}

func newTelemetry(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})
	return provider, nil
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, logger); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return database.Close(db)
		},
	})
	return db, nil
}

func newUserRepository(db *gorm.DB) repository.UserRepository {
	return repository.NewPostgresUserRepository(db)
}

func newNPORepository(db *gorm.DB) repository.NPORepository {
	return repository.NewPostgresNPORepository(db)
}

func newAuditRepository(db *gorm.DB) repository.AuditRepository {
	return repository.NewPostgresAuditRepository(db)
}

// newCacheManager returns nil when CACHE_ENABLED is off.
func newCacheManager(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*cache.CacheManager, error) {
	if !cfg.CacheEnabled {
		logger.Info("listing cache disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	logger.Info("listing cache enabled", zap.String("addr", cfg.RedisAddr()))
	return cache.NewCacheManager(client, cfg.CacheTTL, logger), nil
}

func newListingCache(cm *cache.CacheManager) services.ListingCache {
	if cm == nil {
		return nil
	}
	return cm
}

// newLogoStore returns nil when UPLOADS_ENABLED is off.
func newLogoStore(cfg *config.Config, logger *zap.Logger) (*storage.LogoStore, error) {
	if !cfg.UploadsEnabled {
		logger.Info("logo uploads disabled")
		return nil, nil
	}

	client, err := storage.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	store := storage.NewLogoStore(client, cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newLogoStorage(store *storage.LogoStore) handlers.LogoStorage {
	if store == nil {
		return nil
	}
	return store
}

func newMailer(cfg *config.Config, logger *zap.Logger) *mail.Mailer {
	return mail.NewMailer(mail.NewSender(cfg, logger), cfg.FrontendURL)
}

func newTokenService(cfg *config.Config) *utils.TokenService {
	return utils.NewTokenService(cfg.JWTSecret, cfg.JWTTTL())
}

func newPolicy(cfg *config.Config) *services.Policy {
	return services.NewPolicy(cfg.ModeratorsCanModerate)
}

func newHub(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *notify.Hub {
	hub := notify.NewHub(cfg.CORSAllowedOrigins, logger)
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go hub.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
	return hub
}

func newDispatcher(lc fx.Lifecycle, hub *notify.Hub, users repository.UserRepository, policy *services.Policy, mailer *mail.Mailer, logger *zap.Logger) *notify.Dispatcher {
	d := notify.NewDispatcher(hub, users, policy.Roles(services.OpViewModerationQueue), mailer, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return waitOrDone(ctx, d.Wait)
		},
	})
	return d
}

func newAccounts(users repository.UserRepository, tokens *utils.TokenService, mailer *mail.Mailer, cfg *config.Config, logger *zap.Logger) *services.Accounts {
	return services.NewAccounts(users, tokens, mailer, cfg.PasswordResetTokenTTL, logger)
}

func newLifecycle(npos repository.NPORepository, users repository.UserRepository, policy *services.Policy, cfg *config.Config, listings services.ListingCache, dispatcher *notify.Dispatcher, logger *zap.Logger) *services.Lifecycle {
	return services.NewLifecycle(npos, users, policy, cfg.OneNPOPerUser, logger,
		services.WithListingCache(listings),
		services.WithNotifier(dispatcher),
	)
}

func newDirectory(npos repository.NPORepository, users repository.UserRepository, policy *services.Policy, listings services.ListingCache, logger *zap.Logger) *services.Directory {
	return services.NewDirectory(npos, users, policy, listings, logger)
}

func newRateLimiter(lc fx.Lifecycle) *middleware.RateLimiter {
	limiter := middleware.NewRateLimiter()
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go limiter.Run(ctx, 30*time.Minute)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
	return limiter
}

func newThrottle(cfg *config.Config) *middleware.Throttle {
	return middleware.NewThrottle(cfg.RateLimitRPM, cfg.RateLimitBurst)
}

func newAuditTrail(lc fx.Lifecycle, repo repository.AuditRepository, logger *zap.Logger) *middleware.AuditTrail {
	trail := middleware.NewAuditTrail(repo, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return waitOrDone(ctx, trail.Wait)
		},
	})
	return trail
}

func newHealthHandler(cfg *config.Config, db *gorm.DB, cm *cache.CacheManager, store *storage.LogoStore) *handlers.HealthHandler {
	checks := []handlers.HealthCheck{{
		Name:  "database",
		Check: func(ctx context.Context) error { return database.Ping(ctx, db) },
	}}
	if cm != nil {
		checks = append(checks, handlers.HealthCheck{Name: "cache", Check: cm.Ping})
	}
	if store != nil {
		checks = append(checks, handlers.HealthCheck{Name: "storage", Check: store.Ping})
	}
	return handlers.NewHealthHandler(cfg.ServiceName, checks...)
}

func seedAdmin(lc fx.Lifecycle, cfg *config.Config, users repository.UserRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return database.SeedAdminOnStart(ctx, users, cfg.SuperAdminEmail, cfg.SuperAdminPassword, logger)
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg *config.Config, logger *zap.Logger) {
	addr := ":" + cfg.Port
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				defer close(done)
				logger.Info("http server listening", zap.String("addr", addr), zap.String("env", cfg.Environment))
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func waitOrDone(ctx context.Context, wait func()) error {
	finished := make(chan struct{})
	go func() {
		wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func useTelemetry(*telemetry.Provider) {}
