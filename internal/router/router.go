package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepdesk/examsim-backend/internal/config"
	"github.com/prepdesk/examsim-backend/internal/handler"
	"github.com/prepdesk/examsim-backend/internal/middleware"
	"github.com/prepdesk/examsim-backend/internal/response"
	"github.com/prepdesk/examsim-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Asset   *handler.AssetHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokenService *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Compress large payloads (exports, state snapshots).
	router.Use(middleware.Brotli())

	// Serve uploaded exam materials statically with aggressive caching.
	// Filenames are UUIDs, so stale content is impossible.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	uploadLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── REST API (JWT) ────────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(tokenService))
	{
		api.POST("/assets", uploadLimiter.Middleware(), handlers.Asset.UploadAsset)

		api.POST("/sessions", handlers.Session.Launch)
		api.GET("/sessions", handlers.Session.ListSessions)
		api.GET("/sessions/:id/state", handlers.Session.GetState)
		api.GET("/sessions/:id/result", handlers.Session.GetResult)
		api.GET("/sessions/:id/export", handlers.Session.Export)

		api.GET("/results", handlers.Session.History)
	}

	// ─── WebSocket (query-token auth) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(tokenService))
	{
		ws.GET("/sessions/:id/stream", handlers.WS.StreamSession)
	}

	return router
}
