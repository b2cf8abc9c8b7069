// Package main runs the chat polls HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raven-chat/backend/config"
	"github.com/raven-chat/backend/internal/auth"
	"github.com/raven-chat/backend/internal/channels"
	"github.com/raven-chat/backend/internal/messages"
	"github.com/raven-chat/backend/internal/middleware"
	"github.com/raven-chat/backend/internal/polls"
	"github.com/raven-chat/backend/pkg/cache"
	"github.com/raven-chat/backend/pkg/database"
	"github.com/raven-chat/backend/pkg/redis"
	"github.com/raven-chat/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	var recordCache cache.Cache = cache.NewMemory(ttl)
	if cfg.Cache.Enabled {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis unavailable, using in-process cache", zap.Error(err))
		} else {
			defer rdb.Close()
			recordCache = cache.NewRedis(rdb.Client, ttl)
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	tx := database.NewTransactor(pool)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Channels (also the read-access check for channels and messages)
	channelRepo := channels.NewRepository(pool)
	channelHandler := channels.NewHandler(channelRepo, tx, logger)

	// Polls
	messageRepo := messages.NewRepository(pool)
	pollRepo := polls.NewRepository(pool)
	pollService := polls.NewService(pollRepo, messageRepo, channelRepo, tx, recordCache, logger)
	pollHandler := polls.NewHandler(pollService, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/channels", channelHandler.Create)
		api.POST("/channels/:id/polls", pollHandler.Create)

		api.GET("/messages/:id/poll", pollHandler.Get)
		api.POST("/messages/:id/poll/votes", pollHandler.Vote)
		api.GET("/messages/:id/poll/voters", pollHandler.Voters)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

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
