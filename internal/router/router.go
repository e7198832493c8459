package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/quizspin-backend/internal/config"
	"github.com/stemsi/quizspin-backend/internal/handler"
	"github.com/stemsi/quizspin-backend/internal/middleware"
	"github.com/stemsi/quizspin-backend/internal/response"
	"github.com/stemsi/quizspin-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session  *handler.SessionHandler
	Question *handler.QuestionHandler
	Bank     *handler.BankHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	store *service.SessionStore,
	drawLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	// Credentials require explicit origins, so the cookie only flows cross-origin
	// when the list is configured.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	cookie := middleware.CookieConfig{Name: middleware.SessionCookieName, Secure: cfg.CookieSecure}

	// ─── 1. Bank Group (Public, CDN-cacheable) ─────────────────────────
	bank := router.Group("/api/bank")
	bank.Use(middleware.SharedCache(int(cfg.BankCacheTTL.Seconds()), 60))
	{
		bank.GET("", handlers.Bank.GetBank)
		bank.GET("/summary", handlers.Bank.GetSummary)
	}

	// ─── 2. Session Group (Signed Cookie) ──────────────────────────────
	session := router.Group("/api/session")
	session.Use(middleware.NoStore(), middleware.LoadSession(store, cookie))
	{
		session.GET("", handlers.Session.GetSession)
		session.POST("", handlers.Session.UpdateSession)
		session.DELETE("", handlers.Session.DeleteSession)
		session.POST("/replace", handlers.Session.ReplaceSession)
		session.POST("/timer", handlers.Session.StartTimer)
		session.POST("/finish", handlers.Session.Finish)
		session.POST("/back", handlers.Session.GoBack)
		session.GET("/recovery", handlers.Session.GetRecovery)
	}

	// ─── 3. Question Draw (Signed Cookie, Rate Limited) ────────────────
	router.GET("/api/questions",
		drawLimiter.Middleware(),
		middleware.NoStore(),
		middleware.LoadSession(store, cookie),
		handlers.Question.DrawQuestion,
	)

	// ─── 4. WebSocket Group (Signed Cookie) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.LoadSession(store, cookie))
	{
		ws.GET("/timer", handlers.WS.TimerStream)
	}

	return router
}
