// Package routes wires the gin engine: middleware, /api endpoints, swagger
// and the static frontend.
package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"nko-map-backend/api-server/handlers"
	"nko-map-backend/api-server/middleware"
	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/config"
	"nko-map-backend/shared/services"
)

type Params struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Guard     *middleware.Guard
	Limiter   *middleware.RateLimiter
	Throttle  *middleware.Throttle `optional:"true"`
	Audit     *middleware.AuditTrail
	Auth      *handlers.AuthHandler
	NPO       *handlers.NPOHandler
	Admin     *handlers.AdminHandler
	Profile   *handlers.ProfileHandler
	Uploads   *handlers.UploadHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
}

// NewRouter builds the engine.
func NewRouter(p Params) *gin.Engine {
	cfg := p.Config

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.ForwardedByClientIP = true
	r.Use(middleware.RequestLogger(p.Logger))
	r.Use(middleware.Recovery(p.Logger))
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	guard := p.Guard
	authenticated := guard.Authenticate()

	api := r.Group("/api")
	api.Use(p.Throttle.Handler())
	api.Use(p.Audit.Handler())
	{
		api.GET("/health", p.Health.Health)

		auth := api.Group("/auth")
		{
			auth.POST("/register",
				p.Limiter.Limit("register", "Слишком много попыток регистрации, попробуйте позже", middleware.RegisterConfig(cfg)),
				p.Auth.Register)
			auth.POST("/login",
				p.Limiter.Limit("login", "Слишком много попыток входа, попробуйте позже", middleware.LoginConfig(cfg)),
				p.Auth.Login)
			auth.GET("/me", authenticated, p.Auth.Me)

			resetLimit := p.Limiter.Limit("password-reset", "Слишком много запросов на восстановление пароля, попробуйте позже", middleware.PasswordResetConfig(cfg))
			auth.POST("/forgot-password", resetLimit, p.Auth.ForgotPassword)
			auth.POST("/reset-password", resetLimit, p.Auth.ResetPassword)
		}

		npo := api.Group("/npo")
		{
			npo.GET("", guard.Optional(), p.NPO.List)
			npo.GET("/meta", p.NPO.Meta)
			npo.GET("/:id", guard.Optional(), p.NPO.Get)
			npo.POST("", authenticated, guard.Require(services.OpSubmitNPO), p.NPO.Create)
		}

		uploads := api.Group("/uploads")
		{
			uploads.POST("/logo", authenticated, guard.Require(services.OpSubmitNPO), p.Uploads.UploadLogo)
			uploads.GET("/logo/*key", p.Uploads.Logo)
		}

		admin := api.Group("/admin", authenticated)
		{
			admin.GET("/npos", guard.Require(services.OpViewModerationQueue), p.Admin.Queue)
			admin.GET("/npos/:id", guard.Require(services.OpViewModerationQueue), p.Admin.Get)
			admin.PATCH("/npos/:id/approve", guard.Require(services.OpModerateNPO), p.Admin.Approve)
			admin.PATCH("/npos/:id/reject", guard.Require(services.OpModerateNPO), p.Admin.Reject)
			admin.GET("/stats", guard.Require(services.OpViewStats), p.Admin.Stats)
			admin.GET("/users", guard.Require(services.OpListUsers), p.Admin.Users)
		}

		profile := api.Group("/profile", authenticated, guard.Require(services.OpManageProfile))
		{
			profile.GET("", p.Profile.Get)
			profile.PUT("", p.Profile.Update)
			profile.PUT("/password", p.Profile.ChangePassword)
			profile.GET("/npos", p.Profile.NPOs)
			profile.GET("/stats", p.Profile.Stats)
		}

		api.GET("/ws", authenticated, p.WebSocket.Connect)
	}

	r.GET("/swagger/*any", func(c *gin.Context) {
		if gin.Mode() != gin.DebugMode {
			response.Abort(c, http.StatusNotFound, "NOT_FOUND", "Документация API недоступна")
			return
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler)(c)
	})

	r.NoMethod(func(c *gin.Context) {
		response.Abort(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Метод не поддерживается")
	})
	attachFrontend(r, cfg.PublicDir)
	return r
}

// attachFrontend serves the built SPA from publicDir with an index.html
// fallback for client-side routes.
func attachFrontend(r *gin.Engine, publicDir string) {
	indexPath := filepath.Join(publicDir, "index.html")

	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/api" {
			response.Abort(c, http.StatusNotFound, "NOT_FOUND", "Маршрут не найден")
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			response.Abort(c, http.StatusNotFound, "NOT_FOUND", "Маршрут не найден")
			return
		}

		if filePath, ok := safeJoin(publicDir, path); ok {
			if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
				c.File(filePath)
				return
			}
		}

		if _, err := os.Stat(indexPath); err != nil {
			response.Abort(c, http.StatusNotFound, "NOT_FOUND", "Страница не найдена")
			return
		}
		c.File(indexPath)
	})
}

func safeJoin(baseDir, requestPath string) (string, bool) {
	cleaned := filepath.Clean("/" + strings.TrimPrefix(requestPath, "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return filepath.Join(baseDir, "index.html"), true
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return filepath.Join(baseDir, cleaned), true
}
