package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pelicanhq/pelican/internal/config"
	"github.com/pelicanhq/pelican/internal/platform"
	"github.com/pelicanhq/pelican/internal/service"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Dispatcher    *service.DispatchService
	Analytics     *service.AnalyticsService
	Posts         *service.PostService
	Accounts      *service.AccountService
	Notifications *service.NotificationService
	Stats         *service.StatsService
	Auth          *service.AuthService
	Scheduler     *service.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	platformClient := platform.NewClient(&cfg.Platform, logger)
	stats := service.NewStatsService(db, logger)
	tokens := service.NewTokenService(db, platformClient, logger)
	notifications := service.NewNotificationService(db, logger)
	dispatcher := service.NewDispatchService(&cfg.Dispatch, db, platformClient, tokens, notifications, stats, logger)
	analytics := service.NewAnalyticsService(&cfg.Dispatch, db, platformClient, tokens, stats, logger)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, dispatcher, analytics, stats)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:        cfg,
		DB:            db,
		Router:        router,
		Logger:        logger,
		Dispatcher:    dispatcher,
		Analytics:     analytics,
		Posts:         service.NewPostService(db, logger),
		Accounts:      service.NewAccountService(db, logger),
		Notifications: notifications,
		Stats:         stats,
		Auth:          service.NewAuthService(logger, cfg.Admin.TOTPSecret),
		Scheduler:     scheduler,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Admin-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		// Cron trigger endpoints, authenticated with the shared cron secret
		cron := api.Group("/cron", s.cronAuth())
		{
			cron.GET("/dispatch", s.handleDispatch)
			cron.GET("/sync-analytics", s.handleSyncAnalytics)
		}

		// User-facing routes; the fronting identity layer sets X-User-ID
		authed := api.Group("", s.userAuth())
		{
			authed.POST("/schedule", s.handleCreateScheduledPost)
			authed.GET("/schedule", s.handleListScheduledPosts)

			authed.GET("/accounts", s.handleListAccounts)
			authed.POST("/accounts/switch", s.handleSwitchAccount)

			authed.GET("/notifications", s.handleListNotifications)
			authed.POST("/notifications/read", s.handleMarkNotificationRead)

			authed.GET("/analytics/posts", s.handleListAnalytics)
			authed.GET("/analytics/optimal-times", s.handleOptimalTimes)
		}

		// Admin routes
		admin := api.Group("/admin", s.Auth.AdminMiddleware())
		{
			admin.GET("/stats", s.handleAdminStats)
		}
	}
}

func (s *Server) cronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.Config.Dispatch.CronSecret
		if secret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cron secret not configured"})
			c.Abort()
			return
		}

		if c.GetHeader("Authorization") != "Bearer "+secret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (s *Server) userAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func (s *Server) handleDispatch(c *gin.Context) {
	summary, err := s.Dispatcher.RunSweep(c.Request.Context())
	if err != nil {
		s.Logger.Error("Dispatch sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

func (s *Server) handleSyncAnalytics(c *gin.Context) {
	summary, err := s.Analytics.SyncAll(c.Request.Context())
	if err != nil {
		s.Logger.Error("Analytics sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

type createScheduledPostRequest struct {
	Content      string    `json:"content" binding:"required"`
	ScheduledFor time.Time `json:"scheduled_for" binding:"required"`
	AccountID    string    `json:"account_id" binding:"required"`
}

func (s *Server) handleCreateScheduledPost(c *gin.Context) {
	var req createScheduledPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	post, err := s.Posts.Schedule(c.Request.Context(), c.GetString("user_id"), req.AccountID, req.Content, req.ScheduledFor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScheduleLimitReached):
			c.JSON(http.StatusForbidden, gin.H{"error": "You've reached your monthly scheduled post limit. Upgrade to Pro for unlimited scheduling."})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		default:
			s.Logger.Error("Failed to create scheduled post", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create scheduled post"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (s *Server) handleListScheduledPosts(c *gin.Context) {
	posts, err := s.Posts.ListForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		s.Logger.Error("Failed to list scheduled posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list scheduled posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) handleListAccounts(c *gin.Context) {
	accounts, err := s.Accounts.ListForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		s.Logger.Error("Failed to list accounts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list accounts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

type switchAccountRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

func (s *Server) handleSwitchAccount(c *gin.Context) {
	var req switchAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Account ID is required"})
		return
	}

	err := s.Accounts.SwitchActive(c.Request.Context(), c.GetString("user_id"), req.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		s.Logger.Error("Failed to switch account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	notifications, err := s.Notifications.ListForUser(c.Request.Context(), c.GetString("user_id"), 0)
	if err != nil {
		s.Logger.Error("Failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

type markNotificationReadRequest struct {
	NotificationID string `json:"notification_id" binding:"required"`
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	var req markNotificationReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Notification ID is required"})
		return
	}

	err := s.Notifications.MarkRead(c.Request.Context(), c.GetString("user_id"), req.NotificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		s.Logger.Error("Failed to mark notification as read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleListAnalytics(c *gin.Context) {
	rows, err := s.Analytics.PostsForUser(c.Request.Context(), c.GetString("user_id"), 0)
	if err != nil {
		s.Logger.Error("Failed to list analytics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": rows})
}

func (s *Server) handleOptimalTimes(c *gin.Context) {
	times, err := s.Analytics.OptimalTimes(c.Request.Context(), c.GetString("user_id"), c.Query("account_id"))
	if err != nil {
		s.Logger.Error("Failed to compute optimal times", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute optimal times"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"optimal_times": times})
}

func (s *Server) handleAdminStats(c *gin.Context) {
	records, err := s.Stats.RecentSweeps(0)
	if err != nil {
		s.Logger.Error("Failed to list sweep records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sweep records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sweeps": records})
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
