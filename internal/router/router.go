package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/handler"
	"github.com/quizient/certlab-backend/internal/middleware"
	"github.com/quizient/certlab-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam   *handler.ExamHandler
	Pause  *handler.PauseHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with their middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// A configured origin list restricts access; an empty list allows
	// all origins so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request id first so every response carries metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Question media, aggressively cached (1 year).
	mediaGroup := router.Group("/media")
	mediaGroup.Use(middleware.CacheControl(31536000))
	{
		mediaGroup.Static("/", cfg.MediaDir)
	}

	router.GET("/health", handlers.System.Health)

	// Selection and grading sit behind a limiter so a runaway client
	// cannot hammer the question bank.
	startLimiter := middleware.NewRateLimiter(30, time.Minute)
	submitLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── Attempt Lifecycle ─────────────────────────────────────────────
	exams := router.Group("/api/v1/exams")
	{
		exams.POST("/select", startLimiter.Middleware(), handlers.Exam.Select)
		exams.POST("/on-demand", startLimiter.Middleware(), handlers.Exam.StartOnDemand)
		exams.POST("/submit", submitLimiter.Middleware(), handlers.Exam.Submit)
		exams.POST("/resume", handlers.Exam.Resume)
		exams.POST("/check-answer", handlers.Exam.CheckAnswer)
		exams.GET("/:session_id/questions/:index", handlers.Exam.QuestionAt)

		exams.GET("/:session_id/pause", handlers.Pause.Status)
		exams.POST("/:session_id/pause", handlers.Pause.Start)
		exams.POST("/:session_id/pause/skip", handlers.Pause.Skip)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exams/:session_id/progress", handlers.WS.ProgressStream)
	}

	// ─── Maintenance ───────────────────────────────────────────────────
	maintenance := router.Group("/api/v1/maintenance")
	{
		maintenance.GET("/sessions", handlers.System.ListSessions)
	}

	return router
}
