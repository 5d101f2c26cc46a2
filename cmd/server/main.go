// Package main runs the simulated-live webinar HTTP server with WebSocket push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/evergreen-webinar/backend/config"
	"github.com/evergreen-webinar/backend/internal/abtest"
	"github.com/evergreen-webinar/backend/internal/attendees"
	"github.com/evergreen-webinar/backend/internal/auth"
	"github.com/evergreen-webinar/backend/internal/middleware"
	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/internal/notifications"
	"github.com/evergreen-webinar/backend/internal/playback"
	"github.com/evergreen-webinar/backend/internal/realtime"
	"github.com/evergreen-webinar/backend/internal/registrations"
	"github.com/evergreen-webinar/backend/internal/sessions"
	"github.com/evergreen-webinar/backend/internal/webinars"
	"github.com/evergreen-webinar/backend/pkg/database"
	"github.com/evergreen-webinar/backend/pkg/queue"
	"github.com/evergreen-webinar/backend/pkg/redis"
	"github.com/evergreen-webinar/backend/pkg/response"
	"github.com/evergreen-webinar/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			VideosBucket:         cfg.AWS.VideosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Webinar templates and timeline authoring
	webinarRepo := webinars.NewRepository(pool)
	webinarHandler := webinars.NewHandler(webinarRepo, s3Client, hub, logger)

	// Notifications: planner rows written at registration time, swept to the queue
	notifRepo := notifications.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	scheduler := notifications.NewScheduler(notifRepo, jobQueue, cfg.Notifications.SweepInterval(), logger)
	notifHandler := notifications.NewHandler(notifRepo, logger)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, webinarRepo, notifRepo, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, registrationRepo, logger)

	// Offer experiments
	seed := cfg.Sync.AttendeeSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	abRepo := abtest.NewRepository(pool)
	experiments := abtest.NewService(abRepo, abtest.NewSelector(seed, abtest.DefaultEpsilon), logger)
	abHandler := abtest.NewHandler(abRepo, logger)

	// Session sync
	sessionRepo := sessions.NewRepository(pool)
	presence := sessions.NewRedisPresence(rdb.Client, sessions.DefaultPresenceTTL)
	resolver := playback.NewResolver(cfg.Sync.DriftToleranceSec)
	sim := attendees.New(seed)
	onEnded := func(ctx context.Context, session *models.WebinarSession, registrationID *uuid.UUID) {
		if registrationID != nil {
			registrationSvc.OnPlaybackEnded(ctx, *registrationID, time.Now())
		}
	}
	syncService := sessions.NewService(sessionRepo, webinarRepo, registrationRepo, experiments, presence, resolver, sim, onEnded, logger)
	sessionHandler := sessions.NewHandler(syncService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: registration and viewer playback (no JWT; sessions are keyed by opaque tokens)
	router.POST("/webinars/:id/register", registrationHandler.Register)
	router.POST("/webinars/:id/sessions", sessionHandler.Join)
	router.POST("/replay/:token/sessions", sessionHandler.JoinReplay)
	router.POST("/sessions/:token/sync", sessionHandler.Sync)
	router.POST("/sessions/:token/convert", sessionHandler.Convert)
	router.POST("/sessions/:token/rewards/:rewardId/claim", sessionHandler.ClaimReward)

	// WebSocket push (session token in query)
	router.GET("/ws", realtime.ServeWs(hub, syncService, cfg.Sync.SyncInterval(), logger))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Admin API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	api.Use(middleware.RequireRole("admin", "editor"))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Webinar templates
		api.GET("/webinars", webinarHandler.List)
		api.POST("/webinars", webinarHandler.Create)
		api.GET("/webinars/:id", webinarHandler.Get)
		api.PATCH("/webinars/:id", webinarHandler.Update)
		api.DELETE("/webinars/:id", middleware.RequireRole("admin"), webinarHandler.Delete)
		api.POST("/webinars/:id/video/upload-url", webinarHandler.VideoUploadURL)

		// Timeline authoring
		api.POST("/webinars/:id/chat-messages", webinarHandler.CreateChatMessages)
		api.GET("/webinars/:id/chat-messages", webinarHandler.ListChatMessages)
		api.DELETE("/webinars/:id/chat-messages/:messageId", webinarHandler.DeleteChatMessage)
		api.POST("/webinars/:id/offers", webinarHandler.CreateOffer)
		api.GET("/webinars/:id/offers", webinarHandler.ListOffers)
		api.DELETE("/webinars/:id/offers/:offerId", webinarHandler.DeleteOffer)
		api.POST("/webinars/:id/rewards", webinarHandler.CreateReward)
		api.GET("/webinars/:id/rewards", webinarHandler.ListRewards)
		api.DELETE("/webinars/:id/rewards/:rewardId", webinarHandler.DeleteReward)

		// Registrations and delivery history
		api.GET("/webinars/:id/registrations", registrationHandler.ListByWebinar)
		api.GET("/registrations/:id", registrationHandler.Get)
		api.GET("/webinars/:id/notifications", notifHandler.ListByWebinar)

		// Offer experiments
		api.POST("/offers/:id/ab-tests", abHandler.Create)
		api.GET("/offers/:id/ab-tests", abHandler.ListByOffer)
		api.GET("/ab-tests/:id", abHandler.Get)
		api.GET("/ab-tests/:id/analysis", abHandler.Analyze)
		api.POST("/ab-tests/:id/start", abHandler.Start)
		api.POST("/ab-tests/:id/pause", abHandler.Pause)
		api.POST("/ab-tests/:id/complete", abHandler.Complete)
		api.DELETE("/ab-tests/:id", middleware.RequireRole("admin"), abHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	scheduler.Start()
	logger.Info("notification scheduler started", zap.Duration("interval", cfg.Notifications.SweepInterval()))

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
